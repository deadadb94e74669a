package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"astro-starter/internal/domain"
)

const RootLogger = "root"

var ErrInvalidLevel = errors.New("invalid log level")

type namedLogger struct {
	logger     *zap.Logger
	level      zap.AtomicLevel
	configured bool
}

// Registry entrega loggers con nombre, cada uno con su propio nivel ajustable en caliente.
type Registry struct {
	mu           sync.Mutex
	encoder      zapcore.Encoder
	sink         zapcore.WriteSyncer
	defaultLevel zapcore.Level
	loggers      map[string]*namedLogger
}

// New construye el registro: encoder de consola en perfil dev, JSON en el resto.
func New(profile, level string) (*Registry, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	if profile == "dev" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return NewWithSink(enc, zapcore.Lock(os.Stdout), lvl), nil
}

func NewWithSink(enc zapcore.Encoder, sink zapcore.WriteSyncer, level zapcore.Level) *Registry {
	r := &Registry{
		encoder:      enc,
		sink:         sink,
		defaultLevel: level,
		loggers:      make(map[string]*namedLogger),
	}
	root := r.ensure(RootLogger)
	root.configured = true
	return r
}

// Root devuelve el logger raíz.
func (r *Registry) Root() *zap.Logger {
	return r.Logger(RootLogger)
}

// Logger devuelve el logger con ese nombre, creándolo con el nivel por defecto si no existe.
func (r *Registry) Logger(name string) *zap.Logger {
	return r.ensure(name).logger
}

func (r *Registry) ensure(name string) *namedLogger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[name]; ok {
		return l
	}
	level := zap.NewAtomicLevelAt(r.defaultLevel)
	core := zapcore.NewCore(r.encoder, r.sink, level)
	logger := zap.New(core, zap.AddCaller())
	if name != RootLogger {
		logger = logger.Named(name)
	}
	l := &namedLogger{logger: logger, level: level}
	r.loggers[name] = l
	return l
}

// Levels lista los loggers registrados con su nivel efectivo y el configurado.
func (r *Registry) Levels() map[string]domain.LoggerVM {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.LoggerVM, len(r.loggers))
	for name, l := range r.loggers {
		vm := domain.LoggerVM{EffectiveLevel: LevelName(l.level.Level())}
		if l.configured {
			vm.ConfiguredLevel = vm.EffectiveLevel
		}
		out[name] = vm
	}
	return out
}

// Names devuelve los nombres registrados en orden.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetLevel cambia el nivel del logger; si no existía se crea.
func (r *Registry) SetLevel(name, level string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty logger name", ErrInvalidLevel)
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l := r.ensure(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	l.level.SetLevel(lvl)
	l.configured = true
	return nil
}

// ParseLevel acepta los nombres habituales (TRACE, DEBUG, INFO, WARN, ERROR, OFF) sin distinguir mayúsculas.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG", "ALL":
		return zapcore.DebugLevel, nil
	case "INFO", "":
		return zapcore.InfoLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "OFF", "FATAL":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
}

func LevelName(l zapcore.Level) string {
	if l >= zapcore.FatalLevel {
		return "OFF"
	}
	return l.CapitalString()
}
