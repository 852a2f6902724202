package armexec

// Tracee is one process of a traced tree.
type Tracee struct {
	Parent *Tracee

	PID  int // PID of the process
	VPID int // Tracer-local id, stable for the life of the trace

	// Path of the last program the process executed, à la /proc/self/exe.
	Execute string

	// seen is false until the first stop; new children start with a
	// SIGSTOP the tracer must swallow.
	seen bool
}

// tracees indexes the live processes of a traced tree.
type tracees struct {
	byPID map[int]*Tracee
	vpids int
}

func newTracees() *tracees { return &tracees{byPID: map[int]*Tracee{}} }

func (tree *tracees) getTracee(pid int, create bool) *Tracee {
	if tracee, ok := tree.byPID[pid]; ok {
		return tracee
	} else if !create {
		return nil
	}
	tree.vpids++
	tracee := &Tracee{PID: pid, VPID: tree.vpids}
	tree.byPID[pid] = tracee
	return tracee
}

func (tree *tracees) adopt(parent *Tracee, pid int) *Tracee {
	child := tree.getTracee(pid, true)
	child.Parent = parent
	if child.Execute == "" {
		child.Execute = parent.Execute
	}
	return child
}

func (tree *tracees) terminate(pid int) { delete(tree.byPID, pid) }

func (tree *tracees) len() int { return len(tree.byPID) }
