package main

import (
	"fmt"
	"io"
	stdslog "log/slog"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unkn0wn-root/revcache"
	rlogrus "github.com/unkn0wn-root/revcache/log/logrus"
	rslog "github.com/unkn0wn-root/revcache/log/slog"
	rzap "github.com/unkn0wn-root/revcache/log/zap"
)

// logSink returns where logs go: a rotating file when path is set.
func logSink(path string, stderr io.Writer) (io.Writer, func() error) {
	if path == "" {
		return stderr, func() error { return nil }
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}
	return lj, lj.Close
}

// newLogger builds the revcache.Logger for backend and the slog logger the
// hooks write to.
func newLogger(backend string, w io.Writer) (revcache.Logger, *stdslog.Logger, error) {
	hl := stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))
	switch backend {
	case "", "none":
		return revcache.NopLogger{}, nil, nil
	case "zap":
		core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(w), zap.DebugLevel)
		return rzap.New(zap.New(core)), hl, nil
	case "logrus":
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.JSONFormatter{})
		return rlogrus.New(l), hl, nil
	case "slog":
		return rslog.New(stdslog.New(stdslog.NewJSONHandler(w, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))), hl, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q (want none, zap, logrus or slog)", backend)
}
