package vdo

// ThreadGroup lists the thread counts that must be all zero or all positive.
var ThreadGroup = []string{OptHashZoneThreads, OptLogicalThreads, OptPhysicalThreads}

// CheckInvariants runs the cross-option rules on a config whose options have
// all parsed successfully.
func CheckInvariants(commands *CommandCatalog, cfg *Config) error {
	spec, err := commands.Lookup(cfg.Command)
	if err != nil {
		return err
	}
	if cfg.Supplied(OptName) && cfg.Supplied(OptAll) {
		return NewMutualExclusionError(OptName, OptAll)
	}
	if err := checkSelector(spec, cfg); err != nil {
		return err
	}
	for _, name := range spec.Required {
		if !cfg.Supplied(name) {
			return NewMissingOptionError(spec.Name, name)
		}
	}
	return checkThreadGroup(spec, cfg)
}

func checkSelector(spec *CommandSpec, cfg *Config) error {
	switch spec.Selector {
	case SelectName:
		if cfg.Supplied(OptAll) {
			return NewOptionUsageError(spec.Name, OptAll, "is not supported")
		}
		if !cfg.Supplied(OptName) {
			return NewMissingOptionError(spec.Name, OptName)
		}
	case SelectNameOrAll:
		if !cfg.Supplied(OptName) && !cfg.Supplied(OptAll) {
			return NewMissingOptionError(spec.Name, OptName+" or --"+OptAll)
		}
	}
	return nil
}

// checkThreadGroup compares the effective thread counts. Commands that
// modify an existing volume only compare what was supplied: an unsupplied
// count means "keep the current value", which only the operation knows.
func checkThreadGroup(spec *CommandSpec, cfg *Config) error {
	var counts []int
	for _, name := range ThreadGroup {
		if spec.ModifiesExisting && !cfg.Supplied(name) {
			continue
		}
		if _, ok := cfg.Lookup(name); !ok {
			continue
		}
		counts = append(counts, cfg.Int(name))
	}
	return CheckThreadGroup(counts...)
}

// CheckThreadGroup fails if counts mixes zero and non-zero values.
func CheckThreadGroup(counts ...int) error {
	zero, positive := 0, 0
	for _, n := range counts {
		if n == 0 {
			zero++
		} else {
			positive++
		}
	}
	if zero > 0 && positive > 0 {
		return NewGroupConsistencyError(ThreadGroup)
	}
	return nil
}
