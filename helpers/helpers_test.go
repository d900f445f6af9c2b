package helpers

import (
	"os"
	"testing"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	cache.SetLogger(logrus.New())
	os.Exit(m.Run())
}
