// Package runtime executes IR modules, before and after lowering.
//
// # Quick Start
//
//	mod, _ := text.Parse(src)
//	lowered, _ := statemachine.LowerModule(mod, statemachine.Config{})
//
//	sched := runtime.NewScheduler(runtime.HostFuncs{
//	    "fetch": func(ctx context.Context, args []runtime.Value) (runtime.Value, error) {
//	        return args[0].(int64) * 2, nil
//	    },
//	})
//	in := runtime.NewInterpreter(lowered.Module, runtime.Config{Host: sched})
//	v, err := sched.Run(ctx, in, "main", int64(21))
//
// # Suspension
//
// A suspending call inside a state machine hands the host a *Continuation.
// The host may answer at once by returning a value, or return Pending and
// resume the continuation later:
//
//	v, err := cont.Resume(ctx, runtime.Success(int64(3)))
//
// Resume re-enters the holder's entry method, which dispatches on the saved
// label straight to the resumption branch of the marker that suspended. When
// a resumed state machine completes and was itself called from another state
// machine, the caller is resumed with the outcome, and so on up the chain.
// Resume returns Pending while any machine in the chain is still waiting, and
// the outermost completion otherwise.
//
// A function that was not lowered cannot suspend: a host returning Pending
// to it is a runtime error.
//
// # Failures
//
// A throw raises a *Thrown carrying the thrown value. Host errors travel as
// they are, so errors.Is keeps working across resumes. Interpreter faults
// (type mismatches, reentrant or terminal resumes) are *errors.Error values
// and are never caught by try.
//
// # Scheduling
//
// Scheduler is a Host that parks every suspending call in a Table and runs
// the parked operations in FIFO order, either automatically (Run) or one at
// a time with caller-supplied results (Start, Step).
package runtime
