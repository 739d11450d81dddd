package bakery

type OptionFunc func(*Migrator) error
type ActionConfigurator func(a *action)

type action struct {
	steps     int
	stepMode  bool
	migration string
}

func newAction(cfs ...ActionConfigurator) *action {
	act := &action{}
	for _, f := range cfs {
		f(act)
	}

	return act
}

// WithSteps sets how many of the last batches a rollback or refresh affects
func WithSteps(steps int) ActionConfigurator {
	return func(a *action) {
		a.steps = steps
	}
}

// WithStepMode logs every migrated migration with its own batch,
// so that each one can be rolled back individually
func WithStepMode() ActionConfigurator {
	return func(a *action) {
		a.stepMode = true
	}
}

// WithMigration narrows a rollback down to a single installed migration
func WithMigration(identifier string) ActionConfigurator {
	return func(a *action) {
		a.migration = identifier
	}
}

func CreateConfigurators(steps int, stepMode bool, identifier string) []ActionConfigurator {
	var configurators []ActionConfigurator
	if steps > 0 {
		configurators = append(configurators, WithSteps(steps))
	}

	if stepMode {
		configurators = append(configurators, WithStepMode())
	}

	if identifier != "" {
		configurators = append(configurators, WithMigration(identifier))
	}

	return configurators
}
