package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/robalyx/guardian/internal/setup/telemetry/logger"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	ServiceServer ServiceType = iota
	ServiceExport
	ServiceDB
)

// String returns the component name used for log directories and traces.
func (s ServiceType) String() string {
	switch s {
	case ServiceServer:
		return "server"
	case ServiceExport:
		return "export"
	case ServiceDB:
		return "db"
	default:
		return "unknown"
	}
}

// Manager handles the creation and management of log files and directories.
// It also owns the OpenTelemetry exporter when tracing is configured.
type Manager struct {
	instanceID        string // Unique identifier for this program instance
	componentName     string // Component identifier for this instance
	currentSessionDir string // Path to the current session's log directory
	logDir            string // Base directory for all logs
	level             string // Logging level (debug, info, warn, error)
	maxLogsToKeep     int    // Maximum number of log sessions to retain
	maxLogLines       int    // Maximum number of lines to keep in each log file
	flushInterval     time.Duration
	tracing           bool // Whether spans are exported
	closers           []func() error
}

// NewManager creates a new Manager instance and configures trace export
// when an Uptrace DSN is present.
func NewManager(
	serviceType ServiceType, logDir, version string, debugCfg *config.Debug, telemetryCfg *config.Telemetry,
) *Manager {
	manager := &Manager{
		instanceID:    uuid.New().String(),
		componentName: serviceType.String(),
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
		flushInterval: time.Duration(debugCfg.LogFlushInterval) * time.Millisecond,
	}

	if telemetryCfg != nil && telemetryCfg.UptraceDSN != "" {
		uptrace.ConfigureOpentelemetry(
			uptrace.WithDSN(telemetryCfg.UptraceDSN),
			uptrace.WithServiceName("guardian-"+manager.componentName),
			uptrace.WithServiceVersion(version),
			uptrace.WithDeploymentEnvironment(telemetryCfg.Environment),
		)
		manager.tracing = true
	}

	return manager
}

// Stop flushes buffered log output, closes the log files and flushes pending
// spans. Loggers must not be used afterwards.
func (lm *Manager) Stop(ctx context.Context) error {
	var errs []error
	for i := len(lm.closers) - 1; i >= 0; i-- {
		errs = append(errs, lm.closers[i]())
	}
	lm.closers = nil

	if lm.tracing {
		errs = append(errs, uptrace.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "main.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "database.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	mainLogger = mainLogger.With(zap.String("instance", lm.instanceID))

	return mainLogger, dbLogger, nil
}

// GetCurrentSessionDir returns the current session directory.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.currentSessionDir
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// setupLogDirectories ensures the base directory exists, rotates old
// sessions and creates a new session directory.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// Clean up old log sessions
	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	// Create new session directory with timestamp
	name := fmt.Sprintf("%s_%s", time.Now().Format("2006-01-02_15-04-05"), lm.componentName)
	lm.currentSessionDir = filepath.Join(lm.logDir, name)
	if err := os.MkdirAll(lm.currentSessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	return nil
}

// initLogger creates a new zap logger writing to a line-capped file and,
// when tracing is enabled, forwarding errors as spans. Output is buffered
// when a flush interval is configured.
func (lm *Manager) initLogger(path string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	tail, err := logger.OpenTailFile(path, lm.maxLogLines)
	if err != nil {
		return nil, err
	}
	lm.closers = append(lm.closers, tail.Close)

	var sink zapcore.WriteSyncer = tail
	if lm.flushInterval > 0 {
		buffered := &zapcore.BufferedWriteSyncer{WS: tail, FlushInterval: lm.flushInterval}
		lm.closers = append(lm.closers, buffered.Stop)
		sink = buffered
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, zapLevel),
	}

	if lm.tracing {
		cores = append(cores, NewCore(zapcore.ErrorLevel))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// rotateLogSessions removes the oldest sessions beyond maxLogsToKeep.
func (lm *Manager) rotateLogSessions() error {
	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	keep := max(lm.maxLogsToKeep, 1)
	if len(sessions) < keep {
		return nil
	}

	// Sort sessions by modification time (oldest first)
	sort.Slice(sessions, func(i, j int) bool {
		iInfo, iErr := os.Stat(sessions[i])
		jInfo, jErr := os.Stat(sessions[j])
		if iErr != nil || jErr != nil {
			return sessions[i] < sessions[j]
		}
		return iInfo.ModTime().Before(jInfo.ModTime())
	})

	// Leave room for the session about to be created
	toDelete := len(sessions) - keep + 1
	for i := range toDelete {
		if err := os.RemoveAll(sessions[i]); err != nil {
			return err
		}
	}

	return nil
}
