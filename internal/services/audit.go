package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/pkg/logger"
	"gorm.io/gorm"
)

const auditQueueSize = 1000

const (
	AuditUserRegister        = "user.register"
	AuditVerificationBegin   = "email_verification.begin"
	AuditEmailVerified       = "email_verification.complete"
	AuditVerificationExpired = "email_verification.reissued"
	AuditDeviceCreate        = "totp_device.create"
	AuditDeviceConfirm       = "totp_device.confirm"
	AuditLogin               = "user.login"
	AuditLoginFailed         = "user.login_failed"
	AuditTokenRefresh        = "user.token_refresh"
	AuditSocialLogin         = "user.social_login"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

// AuditService writes audit rows from a background goroutine so request
// handlers never wait on them. A nil *AuditService discards entries.
type AuditService struct {
	DB     *gorm.DB
	queue  chan models.AuditLog
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, auditQueueSize),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}
	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// Close stops accepting entries and waits for queued rows to be written.
func (s *AuditService) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}
