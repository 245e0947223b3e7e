// Package eventbus fans alert lifecycle events out to real-time consumers.
//
// Every event is scoped to a hospital. MemoryBus serves in-process
// subscribers (the admin API's event stream, tests), RedisBus reaches other
// replicas through PUBLISH, MQTTBus feeds ward displays and KafkaBus keeps an
// ordered per-alert stream for downstream analytics. Multi publishes to
// several of them and never lets one failing sink block the others.
//
// Basic usage:
//
//	bus := eventbus.NewMemoryBus(16)
//	defer bus.Close()
//
//	sub := bus.Subscribe(ctx, "hospital-1")
//	defer sub.Close()
//
//	_ = bus.Publish(ctx, eventbus.NewEvent(eventbus.AlertEscalated, "hospital-1", "alert-1", nil, time.Now()))
//
//	for ev := range sub.Events() {
//		fmt.Println(ev.Type, ev.AlertID)
//	}
//
// Publishing is best effort. Slow in-process subscribers lose events rather
// than stall the escalation engine.
package eventbus
