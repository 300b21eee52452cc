package service

import (
	"os"
	"testing"

	"github.com/longhang2004/content-service/internal/tester"
)

func TestMain(m *testing.M) {
	tester.Setup()
	code := m.Run()

	os.Exit(code)
}
