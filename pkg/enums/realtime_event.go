package enums

// RealtimeEvent names the events published on tenant channels.
type RealtimeEvent string

const (
	RealtimeEventNewOrder     RealtimeEvent = "new-order"
	RealtimeEventStaffInvited RealtimeEvent = "staff-invited"
	RealtimeEventEventCreated RealtimeEvent = "event-created"
)

func (e RealtimeEvent) String() string {
	return string(e)
}
