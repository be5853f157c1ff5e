// Package logger writes action-keyed JSON log lines. Every entry carries an
// action name, optional user id, free-form details and an error string.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Logger struct {
	slog *slog.Logger
}

var globalLogger *Logger

func New(output io.Writer, level slog.Level) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.TimeValue(a.Value.Time().UTC())
			case slog.LevelKey:
				a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
			case slog.MessageKey:
				a.Key = "action"
			}
			return a
		},
	})
	return &Logger{slog: slog.New(handler)}
}

// Init installs the process-wide logger. level is one of debug, info, warn,
// error; anything else means info.
func Init(level string) {
	SetOutput(os.Stdout, level)
}

func SetOutput(output io.Writer, level string) {
	globalLogger = New(output, parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) log(level slog.Level, action string, userID *string, details map[string]interface{}, err error) {
	attrs := make([]slog.Attr, 0, 3)
	if userID != nil {
		attrs = append(attrs, slog.String("user_id", *userID))
	}
	if len(details) > 0 {
		attrs = append(attrs, slog.Any("details", details))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.slog.LogAttrs(context.Background(), level, action, attrs...)
}

func Info(action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(slog.LevelInfo, action, nil, details, nil)
	}
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(slog.LevelInfo, action, &userID, details, nil)
	}
}

func Warn(action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(slog.LevelWarn, action, nil, details, nil)
	}
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(slog.LevelWarn, action, &userID, details, nil)
	}
}

func Error(action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(slog.LevelError, action, nil, details, err)
	}
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(slog.LevelError, action, &userID, details, err)
	}
}

func GetUserIDFromContext(c *fiber.Ctx) *string {
	if userID := c.Locals("userID"); userID != nil {
		if id, ok := userID.(string); ok {
			return &id
		}
	}
	return nil
}

var sensitiveFields = []string{"password", "secret", "token", "code", "access", "refresh"}

func redactSensitiveFields(jsonMap map[string]interface{}) {
	for _, field := range sensitiveFields {
		if _, exists := jsonMap[field]; exists {
			jsonMap[field] = "[REDACTED]"
		}
	}
}

func GetRequestBodySummary(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(body, &jsonMap); err == nil {
		redactSensitiveFields(jsonMap)
		if jsonBytes, err := json.Marshal(jsonMap); err == nil {
			if len(jsonBytes) > 200 {
				return string(jsonBytes[:200]) + "..."
			}
			return string(jsonBytes)
		}
	}

	return fmt.Sprintf("binary (%d bytes)", len(body))
}

// RedactPath hides the signed token in verification links.
func RedactPath(path string) string {
	const marker = "/verify-email/complete/"
	if i := strings.Index(path, marker); i >= 0 {
		return path[:i+len(marker)] + "[REDACTED]"
	}
	return path
}

func GenerateRequestID() string {
	return uuid.New().String()
}
