package bridge

import (
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/engine"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

func decode[T any](message Message) (*T, error) {
	var data T
	if len(message.Data) == 0 {
		return &data, nil
	}
	if err := utils.Unmarshal(message.Data, &data); err != nil {
		return nil, types.Errorf(types.ErrBridgeMessageInvalid, "%s: %v", message.Type, err)
	}
	return &data, nil
}

// dispatch applies one inbound message. State updates only touch the
// snapshot; anything that reads or mutates friend state goes through serial.
func (s *Server) dispatch(message Message) (*Message, error) {
	switch message.Type {
	case TypeZone:
		data, err := decode[ZoneData](message)
		if err != nil {
			return nil, err
		}
		s.snapshot.SetZone(data.Competitive, data.LoggedIn)
		return nil, nil

	case TypeEntities:
		data, err := decode[EntitiesData](message)
		if err != nil {
			return nil, err
		}
		s.snapshot.SetEntities(data.Entities)
		return nil, nil

	case TypeRoster:
		data, err := decode[RosterData](message)
		if err != nil {
			return nil, err
		}
		s.snapshot.SetRoster(data.Entries, data.Ready, data.Error)
		return nil, nil

	case TypeSurface:
		data, err := decode[SurfaceData](message)
		if err != nil {
			return nil, err
		}
		if data.Name == "" {
			return nil, types.Errorf(types.ErrBridgeMessageInvalid, "surface name is empty")
		}
		if s.snapshot.SetSurface(data.Name, data.Open, data.Fragments) {
			s.notifySurfaceOpened()
		}
		return nil, nil

	case TypeSurfaceEvent:
		data, err := decode[SurfaceEventData](message)
		if err != nil {
			return nil, err
		}
		switch data.Event {
		case "open", "refresh":
			s.notifySurfaceOpened()
		case "close":
			s.snapshot.SetSurface(data.Name, false, nil)
		default:
			return nil, types.Errorf(types.ErrBridgeMessageInvalid, "unknown surface event %q", data.Event)
		}
		return nil, nil

	case TypeLocations:
		data, err := decode[LocationsData](message)
		if err != nil {
			return nil, err
		}
		s.serial.Do(func(e *engine.Engine) { e.SetLocations(data.Locations) })
		return nil, nil

	case TypeJobs:
		data, err := decode[JobsData](message)
		if err != nil {
			return nil, err
		}
		s.serial.Do(func(e *engine.Engine) { e.SetJobs(data.Jobs) })
		return nil, nil

	case TypeContextAdd:
		data, err := decode[ContextAddData](message)
		if err != nil {
			return nil, err
		}
		addErr := engine.Value(s.serial, func(e *engine.Engine) error { return e.AddEntityAsFriend(data.EntityID) })
		result := ResultData{OK: addErr == nil}
		if addErr != nil {
			result.Error = addErr.Error()
		}
		return &Message{Type: TypeResult, Data: mustEncode(result)}, nil

	case TypeFrame:
		displays := engine.Value(s.serial, func(e *engine.Engine) []types.EntityDisplay {
			e.Tick()
			return e.DecideAll()
		})
		return &Message{Type: TypeDisplay, Data: mustEncode(DisplayData{Entities: displays})}, nil

	default:
		return nil, types.Errorf(types.ErrBridgeMessageInvalid, "unknown message type %q", message.Type)
	}
}

func (s *Server) notifySurfaceOpened() {
	s.serial.Do(func(e *engine.Engine) { e.NotifySurfaceOpened() })
}
