// Package events provides a non-blocking pub/sub bus for pool notifications.
//
// Pools publish lifecycle and task failure events, the chaos monkey publishes
// attacks, and the recovery manager publishes its actions. Subscribers such
// as the API websocket stream receive them on buffered channels; a full
// subscriber buffer drops the event for that subscriber only.
//
//	bus := events.NewBus()
//	ch := bus.Subscribe()
//	defer bus.Unsubscribe(ch)
//
//	pool.SetEventBus(bus)
//	for e := range ch {
//	    fmt.Println(e.Type, e.PoolID)
//	}
package events
