package bakery

import (
	"github.com/denismitr/bakery/internal/source"
	"github.com/denismitr/bakery/migration"
)

type (
	sourceConfig struct {
		versionFormat migration.VersionFormat
	}

	SourceConfigurator func(sc *sourceConfig)
)

func UseLocalFolderSource(folder string, configurators ...SourceConfigurator) OptionFunc {
	var sc sourceConfig
	sc.versionFormat = migration.TimestampFormat
	for _, c := range configurators {
		c(&sc)
	}

	return func(m *Migrator) error {
		conv, err := source.NewLocalFSSource(folder, m.lg, sc.versionFormat)
		if err != nil {
			return err
		}

		m.locator = conv
		return nil
	}
}

func UseInMemorySource(factories ...migration.Factory) OptionFunc {
	return func(m *Migrator) error {
		s, err := source.NewInMemorySourceFrom(factories...)
		if err != nil {
			return err
		}

		m.locator = s
		return nil
	}
}

func WithVersionFormat(vf migration.VersionFormat) SourceConfigurator {
	return func(sc *sourceConfig) {
		sc.versionFormat = vf
	}
}
