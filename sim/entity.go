package sim

import "fmt"

// User is a simulated user executing a usage scenario.
type User struct {
	ID string
}

// BehaviorContext is the interpretation state of a user within a scenario
// behaviour. It references its wrapper and the wrapper references it back.
type BehaviorContext struct {
	ID       string
	User     *User
	Scenario *ModelElement
	Wrapper  *BehaviorWrapper
}

// BehaviorWrapper wraps the scenario behaviour a context is currently executing.
type BehaviorWrapper struct {
	ID       string
	Behavior *ModelElement
	Context  *BehaviorContext
}

// NewBehaviorContext creates a context and its wrapper, linked to each other.
func NewBehaviorContext(id string, user *User, scenario, behavior *ModelElement) *BehaviorContext {
	ctx := &BehaviorContext{ID: id, User: user, Scenario: scenario}
	ctx.Wrapper = &BehaviorWrapper{ID: id + "/wrapper", Behavior: behavior, Context: ctx}
	return ctx
}

// Request is a system call issued by a user, processed by SEFFs.
type Request struct {
	ID      string
	User    *User
	Context *BehaviorContext
}

// Discipline is the queueing discipline of the resource serving a job.
type Discipline string

const (
	FCFS             Discipline = "fcfs"
	ProcessorSharing Discipline = "processor-sharing"
	// Linking jobs are served FCFS by linking resources; their demand is
	// normalized by throughput and may be zero.
	Linking Discipline = "linking"
)

// ValidDisciplines is the set of recognized queueing disciplines.
var ValidDisciplines = map[Discipline]bool{FCFS: true, ProcessorSharing: true, Linking: true}

// Job is resource demand being served by a processing resource. Demand holds
// the current value: requested on creation, normalized by the resource's
// processing rate once the job entered the resource, and decreasing while served.
type Job struct {
	ID         string
	Demand     float64
	Discipline Discipline
	Resource   *ModelElement
	Request    *Request
}

// WithDemand returns a copy of the job carrying the given demand.
func (j *Job) WithDemand(demand float64) *Job {
	cp := *j
	cp.Demand = demand
	return &cp
}

func (j *Job) String() string {
	return fmt.Sprintf("job[%s, %s, demand=%g]", j.ID, j.Discipline, j.Demand)
}

// Owner returns the user on whose behalf the job is executed, or nil.
func (j *Job) Owner() *User {
	if j.Request == nil {
		return nil
	}
	return j.Request.User
}
