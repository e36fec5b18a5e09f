package cli

var (
	verbose    bool
	configPath string

	// all commands
	deviceId string
	display  int
	region   string

	// for screenshot command
	screenshotOutputPath  string
	screenshotFormat      string
	screenshotJpegQuality int

	// for find and wait commands
	templateSet string
	threshold   float64
	findCount   int
	waitVanish  bool
	waitTimeout int

	// for gestures
	gestureDurationMs int
	gestureSlot       int
	pinchAngle        float64
	keyAction         string
)
