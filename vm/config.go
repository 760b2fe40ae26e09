package vm

// Config holds engine settings.
type Config struct {
	// MaxStack is the ceiling on operand stack slots per engine.
	// Growing past it fails with ErrStackOverflow.
	MaxStack int

	// InitialStack is the number of slots allocated up front.
	InitialStack int

	// MaxFrameDepth limits nested calls. Zero means unlimited.
	MaxFrameDepth int

	// Sandbox refuses NEW_OBJ construction of host types.
	Sandbox bool

	// CheckStackBounds compares each frame's peak operand depth with the
	// chunk's declared max stack and fails when it is exceeded.
	CheckStackBounds bool
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		MaxStack:      1 << 20,
		InitialStack:  1 << 10,
		MaxFrameDepth: 10000,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxStack <= 0 {
		c.MaxStack = d.MaxStack
	}
	if c.InitialStack <= 0 {
		c.InitialStack = d.InitialStack
	}
	if c.InitialStack > c.MaxStack {
		c.InitialStack = c.MaxStack
	}
	return c
}
