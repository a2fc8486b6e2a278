package sinks

import (
	"context"

	"github.com/sirupsen/logrus"

	"remote-pong/logging"
)

// LogrusSink renders events through a logrus logger, one entry per event with
// the event metadata attached as fields.
type LogrusSink struct {
	logger *logrus.Logger
}

func NewLogrusSink(logger *logrus.Logger) *LogrusSink {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}
	return &LogrusSink{logger: logger}
}

func (s *LogrusSink) Write(event logging.Event) error {
	fields := logrus.Fields{
		"tick":  event.Tick,
		"actor": formatEntity(event.Actor),
	}
	if event.Category != "" {
		fields["category"] = event.Category
	}
	if len(event.Targets) > 0 {
		fields["targets"] = formatTargets(event.Targets)
	}
	if event.Payload != nil {
		fields["payload"] = event.Payload
	}
	for k, v := range event.Extra {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	entry := s.logger.WithFields(fields).WithTime(event.Time)
	entry.Log(logrusLevel(event.Severity), string(event.Type))
	return nil
}

func (s *LogrusSink) Close(context.Context) error {
	return nil
}

func logrusLevel(sev logging.Severity) logrus.Level {
	switch sev {
	case logging.SeverityDebug:
		return logrus.DebugLevel
	case logging.SeverityWarn:
		return logrus.WarnLevel
	case logging.SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
