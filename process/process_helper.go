package process

// ProcessOpener opens processes for memory operations
type ProcessOpener interface {
	// NewWithPID creates a new Process instance and opens it with the given PID
	NewWithPID(pid ProcessID) (Process, error)
}

// OpenerFunc adapts a plain function to ProcessOpener
type OpenerFunc func(pid ProcessID) (Process, error)

func (f OpenerFunc) NewWithPID(pid ProcessID) (Process, error) {
	return f(pid)
}

// ProcessFinder locates running processes
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by name, lowest PID first
	FindProcessByName(name string) ([]ProcessInfo, error)
}
