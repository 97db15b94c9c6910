package app

import (
	"os"
	"testing"

	"github.com/rcrderby/crg-overlays/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
