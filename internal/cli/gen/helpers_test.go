package gen

import (
	"testing"

	"github.com/spf13/viper"
)

func useConfig(t *testing.T, path string) {
	t.Helper()
	viper.Set("config", path)
	t.Cleanup(func() { viper.Set("config", "") })
}

func useSetting(t *testing.T, key string, value interface{}) {
	t.Helper()
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, nil) })
}
