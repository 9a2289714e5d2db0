package executor

// ExecutorOptions configures plan execution
type ExecutorOptions struct {
	// MaxRows caps the rows an entity set scan may return (0 = unlimited)
	MaxRows int

	// Workers is the number of goroutines QueryAll uses (0 = NumCPU)
	Workers int
}

// DefaultExecutorOptions returns the options used when none are given
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{}
}
