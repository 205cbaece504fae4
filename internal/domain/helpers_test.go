package domain

import (
	"bytes"
	"time"

	"qtsync.dev/pkg/qtsync/internal/controller"
	m "qtsync.dev/pkg/qtsync/internal/model"
)

var (
	runStart = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	runEnd   = runStart.Add(time.Minute)
)

func testConfig() *m.Config {
	cfg := m.DefaultConfig()
	cfg.Host = "acme.qtestnet.com"
	cfg.BearerToken = "token"
	cfg.ProjectID = "42"

	return &cfg
}

func existingSuiteConfig(suiteID string) *m.Config {
	cfg := testConfig()
	cfg.SuiteID = suiteID

	return cfg
}

func newSuiteConfig(parentType, parentID, name string) *m.Config {
	cfg := testConfig()
	cfg.ParentType = parentType
	cfg.ParentID = parentID
	cfg.SuiteName = name

	return cfg
}

type bufferUI struct {
	controller.UI
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newBufferUI(opts ...controller.Option) bufferUI {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	return bufferUI{
		UI:     controller.NewWriterUI(out, errOut, opts...),
		out:    out,
		errOut: errOut,
	}
}

func noSignals() *shutdownRegistry {
	return newShutdownRegistry(func(func()) {})
}
