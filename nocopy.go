package corun

// noCopy marks a struct as must-not-be-copied after first use. It
// carries no state; embedding it makes `go vet -copylocks` flag
// copies, the same trick sync.WaitGroup uses.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
