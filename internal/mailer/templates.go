package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

const verificationSubject = "Verify your email address"

var verificationHTML = template.Must(template.New("verification.html").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif">
    <p>Hello,</p>
    <p>Confirm your email address to finish setting up your account.</p>
    <p><a href="{{.Link}}">Verify email</a></p>
    <p>The link expires in {{.Minutes}} minutes. If it expires, opening it sends you a new one.</p>
  </body>
</html>
`))

var verificationText = texttemplate.Must(texttemplate.New("verification.txt").Parse(`Hello,

Confirm your email address to finish setting up your account:

{{.Link}}

The link expires in {{.Minutes}} minutes. If it expires, opening it sends you a new one.
`))

type verificationData struct {
	Link    string
	Minutes int
}

// VerificationEmail renders the message carrying the email verification link.
func VerificationEmail(to, link string, minutes int) (Message, error) {
	data := verificationData{Link: link, Minutes: minutes}

	var html bytes.Buffer
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render verification html: %w", err)
	}
	var text bytes.Buffer
	if err := verificationText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render verification text: %w", err)
	}

	return Message{
		To:      to,
		Subject: verificationSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
