package main

import (
	"errors"
	"testing"

	"github.com/cazayus/wshub/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFinish(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	assert.Equal(t, 0, finish(logger, nil))
	assert.Zero(t, logs.Len())

	assert.Equal(t, 1, finish(logger, errors.New("listen: address in use")))
	entries := logs.FilterMessage("wshub stopped").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "listen: address in use", entries[0].ContextMap()["error"])
	}
}
