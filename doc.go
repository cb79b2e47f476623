// Package alpine provides an in-process, typed publish/subscribe event bus.
//
// Producers post plain Go values; listeners registered for the value's type
// receive them synchronously, on the posting goroutine, in priority order.
//
// Basic example:
//
//	type UserCreated struct {
//	    ID   string
//	    Name string
//	}
//
//	bus, err := alpine.NewBus("app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bus.Subscribe(alpine.Listen(func(u *UserCreated) {
//	    fmt.Println("user created:", u.Name)
//	}))
//
//	bus.Post(ctx, &UserCreated{ID: "1", Name: "John"})
//
// Subscribers:
// Subscribe accepts a *Listener or a pointer to a subscriber object whose
// listeners are discovered by the bus's strategies:
//   - FieldStrategy: *Listener fields tagged `alpine:"subscribe"`.
//   - MethodStrategy: methods named by MethodSubscriber.SubscribedMethods.
//   - ProviderStrategy: listeners returned by ListenerProvider.Listeners.
//
// Registration is all or nothing and Unsubscribe removes everything the
// subscriber registered.
//
//	type Mailer struct {
//	    OnSignup *alpine.Listener `alpine:"subscribe"`
//	}
//
//	m := &Mailer{OnSignup: alpine.NewListener(sendWelcome,
//	    alpine.WithPriority(alpine.PriorityLow),
//	    alpine.WithFilter(func(u *UserCreated) bool { return u.Name != "" }),
//	)}
//	bus.Subscribe(m)
//	defer bus.Unsubscribe(m)
//
// Matching:
// By default a listener receives events whose dynamic type equals its event
// type; *T and T are different types. With WithSuperListeners a listener
// also receives events implementing its interface event type and events
// whose type declares it as a supertype in the bus's TypeGraph.
//
// Ordering:
// Lower priorities run first. Listeners with equal priority run in
// registration order.
//
// Cancellation:
// Events implementing Cancellable (for instance by embedding Cancellation or
// Base) stop dispatch as soon as a listener cancels them.
//
// Errors:
// Under the default FailFast policy the first listener error or recovered
// panic stops the post and is returned as a *ListenerInvocationError. With
// WithErrorPolicy(ReportAndContinue) failures go to the error handler and
// every listener still runs.
//
// Parent buses:
// Buses set with WithParents or Attach receive every event posted to the
// child after the child's own listeners, with their own configuration.
//
// Bus Options:
//   - WithBusTracing: enable/disable OpenTelemetry tracing. Default is true.
//   - WithBusRecovery: enable/disable panic recovery in listeners. Default is true.
//   - WithBusMetrics: enable/disable OpenTelemetry metrics. Default is true.
//   - WithBusLogger: set logger for the bus.
//   - WithMonitor: record every listener outcome in a monitor.Store.
package alpine
