package messaging

import (
	"context"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/evidence"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type logSender struct {
	log *logger.Logger
}

// NewLogSender logs dispatches instead of delivering them. Local development
// only; it never logs the code itself.
func NewLogSender(log *logger.Logger) CodeSender {
	return &logSender{log: log.With("service", "LogCodeSender")}
}

func (s *logSender) SendCode(_ context.Context, channel types.Channel, target string, msg CodeMessage) error {
	s.log.Info("signing code dispatched (log only)",
		"channel", string(channel),
		"target", evidence.MaskTarget(target),
		"contract_code", msg.ContractCode,
	)
	return nil
}
