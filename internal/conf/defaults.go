// defaults.go: the baseline configuration a fresh install runs with.
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig seeds viper so every key resolves even when the
// config file omits it.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "syrinx")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.url", "sqlite://syrinx.db")
	v.SetDefault("database.echo", false)
	v.SetDefault("database.pool.maxopen", 5)
	v.SetDefault("database.pool.maxidle", 2)
	v.SetDefault("database.pool.maxlifetime", "30m")

	v.SetDefault("dataroots.audio", "./data/audio")
	v.SetDefault("dataroots.features", "./data/features")

	v.SetDefault("ingest.globs.audio", "**/*.wav")
	v.SetDefault("ingest.globs.segments", "**/*.segments.json")
	v.SetDefault("ingest.globs.embeddings", "**/*.embeddings.json")
	v.SetDefault("ingest.checksum", ChecksumSHA256)
	v.SetDefault("ingest.batchsize", 1000)
	v.SetDefault("ingest.workers", 0)

	v.SetDefault("query.timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}
