package config

const (
	defaultJobsDir            = "~/.local/share/smart-trapper/jobs"
	defaultEngine             = "smart_trapper_b1"
	defaultBaselineWidth      = 5
	defaultBaselineResolution = 300
	defaultTimeoutSeconds     = 0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultImportOverlays     = true
)

var defaultScanSteps = []int{25, 10, 4}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			JobsDir: defaultJobsDir,
			Engine:  defaultEngine,
		},
		Trap: Trap{
			BaselineWidth:      defaultBaselineWidth,
			BaselineResolution: defaultBaselineResolution,
			ScanSteps:          append([]int(nil), defaultScanSteps...),
		},
		Engine: Engine{
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Debug: Debug{
			ImportOverlays: defaultImportOverlays,
		},
	}
}
