// Package pass issues and checks the encrypted QR passes attendees show at the door.
package pass

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

// Pass is the payload sealed inside the QR code.
type Pass struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	GuestCount int       `json:"guest_count"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Issued is returned to the attendee.
type Issued struct {
	Pass  Pass   `json:"pass"`
	Token string `json:"token"`
	PNG   []byte `json:"png"`
}

// Verification is what the door sees after scanning.
type Verification struct {
	Pass       Pass              `json:"pass"`
	Valid      bool              `json:"valid"`
	Status     models.RSVPStatus `json:"status,omitempty"`
	GuestCount int               `json:"guest_count"`
	Reason     string            `json:"reason,omitempty"`
}

// Ledger is the read side the pass service checks against.
type Ledger interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error)
}

type Service struct {
	Ledger Ledger
	Logger *logger.Logger
	secret []byte
}

// MinSecretLength is the shortest PASS_SECRET_KEY accepted.
const MinSecretLength = 16

// ErrWeakSecret is returned for a missing or short signing secret. Passes sealed with a
// guessable key could be forged by anyone.
var ErrWeakSecret = fmt.Errorf("pass secret must be at least %d bytes", MinSecretLength)

func NewService(ledger Ledger, secret string, log *logger.Logger) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Service{Ledger: ledger, Logger: log, secret: hashed[:]}, nil
}

// Issue seals a pass for a user who is going and renders it as a PNG QR code.
func (s *Service) Issue(ctx context.Context, eventID, userID string) (*Issued, error) {
	event, err := s.Ledger.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusPublished {
		return nil, models.ErrEventClosed
	}
	record, err := s.Ledger.GetRecord(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != models.RSVPGoing {
		return nil, models.ErrNotAttending
	}

	p := Pass{EventID: eventID, UserID: userID, GuestCount: record.GuestCount, IssuedAt: time.Now().UTC()}
	token, err := s.seal(p)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return &Issued{Pass: p, Token: token, PNG: png}, nil
}

// Verify opens a scanned token for an event the actor manages and re-checks the ledger,
// so a pass stops working once its holder withdraws.
func (s *Service) Verify(ctx context.Context, actor models.Actor, eventID, token string) (*Verification, error) {
	event, err := s.Ledger.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(actor) {
		return nil, models.ErrForbidden
	}

	p, err := s.open(token)
	if err != nil {
		s.Logger.LogSecurity("PASS_REJECTED", fmt.Sprintf("unreadable pass presented at %s: %v", eventID, err))
		return nil, models.ErrInvalidPass
	}
	v := &Verification{Pass: p}
	if p.EventID != eventID {
		v.Reason = "pass belongs to another event"
		return v, nil
	}

	record, err := s.Ledger.GetRecord(ctx, eventID, p.UserID)
	if err != nil {
		return nil, err
	}
	switch {
	case record == nil:
		v.Reason = "no attendance record"
	case record.Status != models.RSVPGoing:
		v.Status = record.Status
		v.Reason = "attendee is no longer going"
	default:
		v.Valid = true
		v.Status = record.Status
		v.GuestCount = record.GuestCount
	}
	s.Logger.Info("PASS", fmt.Sprintf("Pass of %s at %s checked by %s: valid=%t", p.UserID, eventID, actor.UserID, v.Valid))
	return v, nil
}

func (s *Service) seal(p Pass) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (s *Service) open(token string) (Pass, error) {
	var p Pass
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return p, err
	}
	gcm, err := s.aead()
	if err != nil {
		return p, err
	}
	if len(raw) < gcm.NonceSize() {
		return p, errors.New("token too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(data, &p)
	return p, err
}

func (s *Service) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
