// api/config/config_test.go
package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-governance/aegis/api/config"
)

func TestInitConfigDefaults(t *testing.T) {
	// No config file in the test working directory; everything comes from
	// the defaults.
	require.NoError(t, config.InitConfig())

	assert.Equal(t, "8080", config.GetString("server.port"))
	assert.Equal(t, 5*time.Second, config.GetDuration("pipeline.stageTimeout"))
	assert.Contains(t, config.GetStringSlice("pipeline.regulatedDomains"), "healthcare")
	assert.Equal(t, 40, config.GetInt("risk.warnThreshold"))
	assert.Equal(t, 75, config.GetInt("risk.blockThreshold"))

	whitelist := config.GetStringMapStringSlice("pipeline.domainWhitelist")
	assert.Empty(t, whitelist)
}

func TestDomainWhitelistOverride(t *testing.T) {
	require.NoError(t, config.InitConfig())

	viper.Set("pipeline.domainWhitelist", map[string][]string{
		"finance": {"KEYWORD_REGULATORY"},
	})
	defer viper.Set("pipeline.domainWhitelist", map[string][]string{})

	whitelist := config.GetStringMapStringSlice("pipeline.domainWhitelist")
	require.Contains(t, whitelist, "finance")
	assert.Equal(t, []string{"KEYWORD_REGULATORY"}, whitelist["finance"])
}
