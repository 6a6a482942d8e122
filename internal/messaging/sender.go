// Package messaging dispatches one-time signing codes over the session's
// side channel. Delivery is best-effort from the caller's point of view: the
// session row records dispatch outcome either way.
package messaging

import (
	"context"
	"fmt"

	"github.com/yungbote/rentline-backend/internal/clients/twilio"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/evidence"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/platform/sendgrid"
)

// CodeMessage carries everything a channel needs to deliver one code.
type CodeMessage struct {
	ContractCode  string
	ContractTitle string
	Code          string
	TTLMinutes    int
}

// CodeSender delivers a signing code to a target over one channel.
type CodeSender interface {
	SendCode(ctx context.Context, channel types.Channel, target string, msg CodeMessage) error
}

type sender struct {
	log   *logger.Logger
	sms   twilio.Client
	email sendgrid.Client
}

// New builds a sender over the configured channels. A nil client disables
// that channel; sending on a disabled channel fails rather than silently
// dropping the code.
func New(log *logger.Logger, sms twilio.Client, email sendgrid.Client) CodeSender {
	return &sender{
		log:   log.With("service", "CodeSender"),
		sms:   sms,
		email: email,
	}
}

func (s *sender) SendCode(ctx context.Context, channel types.Channel, target string, msg CodeMessage) error {
	switch channel {
	case types.ChannelSMS:
		if s.sms == nil {
			return fmt.Errorf("sms channel not configured")
		}
		_, err := s.sms.SendSMS(ctx, target, smsBody(msg))
		if err != nil {
			s.log.Warn("sms code dispatch failed", "contract_code", msg.ContractCode, "target", evidence.MaskTarget(target), "error", err)
			return err
		}
		return nil
	case types.ChannelEmail:
		if s.email == nil {
			return fmt.Errorf("email channel not configured")
		}
		subject, text := emailBody(msg)
		_, err := s.email.Send(ctx, sendgrid.SendEmailRequest{
			To:         []sendgrid.EmailAddress{{Email: target}},
			Subject:    subject,
			Text:       text,
			Categories: []string{"signing-code"},
		})
		if err != nil {
			s.log.Warn("email code dispatch failed", "contract_code", msg.ContractCode, "target", evidence.MaskTarget(target), "error", err)
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}

func smsBody(msg CodeMessage) string {
	return fmt.Sprintf("Ma ky hop dong %s cua ban la %s. Ma het han sau %d phut. Khong chia se ma nay voi bat ky ai.",
		msg.ContractCode, msg.Code, msg.TTLMinutes)
}

func emailBody(msg CodeMessage) (subject, text string) {
	subject = fmt.Sprintf("Ma xac nhan ky hop dong %s", msg.ContractCode)
	text = fmt.Sprintf(
		"Ban dang ky hop dong %q (%s).\n\nMa xac nhan cua ban: %s\n\nMa co hieu luc trong %d phut va chi su dung duoc mot lan. Neu ban khong yeu cau ma nay, vui long bo qua email.",
		msg.ContractTitle, msg.ContractCode, msg.Code, msg.TTLMinutes)
	return subject, text
}
