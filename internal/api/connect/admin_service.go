// Package connect provides the admin Connect RPC service.
package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/shinonome/internal/app/notification"
	"github.com/osa030/shinonome/internal/app/playback"
)

// Procedure paths of the admin service. Messages are google.protobuf.Struct, with
// google.protobuf.Empty for requests that take no arguments.
const (
	ServiceName = "shinonome.admin.v1.AdminService"

	ListRoomsProcedure   = "/" + ServiceName + "/ListRooms"
	GetQueueProcedure    = "/" + ServiceName + "/GetQueue"
	SkipProcedure        = "/" + ServiceName + "/Skip"
	StopProcedure        = "/" + ServiceName + "/Stop"
	WatchEventsProcedure = "/" + ServiceName + "/WatchEvents"
)

// Rooms is the subset of *playback.Manager the admin service uses.
type Rooms interface {
	Rooms() []*playback.Room
	Get(guildID string) (*playback.Room, error)
	Stop(guildID string)
}

// AdminService implements the admin RPCs.
type AdminService struct {
	rooms    Rooms
	notifier *notification.Manager
}

// NewAdminService creates a new AdminService.
func NewAdminService(rooms Rooms, notifier *notification.Manager) *AdminService {
	return &AdminService{rooms: rooms, notifier: notifier}
}

// Handler mounts every admin procedure on a single handler.
func (s *AdminService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListRoomsProcedure, connect.NewUnaryHandler(ListRoomsProcedure, s.ListRooms, opts...))
	mux.Handle(GetQueueProcedure, connect.NewUnaryHandler(GetQueueProcedure, s.GetQueue, opts...))
	mux.Handle(SkipProcedure, connect.NewUnaryHandler(SkipProcedure, s.Skip, opts...))
	mux.Handle(StopProcedure, connect.NewUnaryHandler(StopProcedure, s.Stop, opts...))
	mux.Handle(WatchEventsProcedure, connect.NewServerStreamHandler(WatchEventsProcedure, s.WatchEvents, opts...))
	return "/" + ServiceName + "/", mux
}

// ListRooms returns every active room.
func (s *AdminService) ListRooms(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	rooms := s.rooms.Rooms()
	list := make([]any, 0, len(rooms))
	for _, r := range rooms {
		list = append(list, roomFields(r))
	}
	return response(map[string]any{"rooms": list})
}

// GetQueue returns the display queue of one room.
func (s *AdminService) GetQueue(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	room, err := s.room(req.Msg)
	if err != nil {
		return nil, err
	}

	entries := room.QueueListing()
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, notification.EntryFields(e))
	}
	fields := roomFields(room)
	fields["entries"] = list
	return response(fields)
}

// Skip stops the current entry of a room without a vote.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	room, err := s.room(req.Msg)
	if err != nil {
		return nil, err
	}

	if _, err := room.Skip(); err != nil {
		if errors.Is(err, playback.ErrNotPlaying) {
			return nil, connect.NewError(connect.CodeFailedPrecondition, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	zlog.Info().Msgf("admin skip: guild=%s", room.GuildID())
	return response(map[string]any{"success": true, "message": "Track skipped"})
}

// Stop tears a room down and leaves its voice channel.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	room, err := s.room(req.Msg)
	if err != nil {
		return nil, err
	}
	s.rooms.Stop(room.GuildID())
	zlog.Info().Msgf("admin stop: guild=%s", room.GuildID())
	return response(map[string]any{"success": true, "message": "Room stopped"})
}

// WatchEvents streams playback events until the client goes away.
func (s *AdminService) WatchEvents(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	w := &watcher{stream: stream}
	id := s.notifier.Subscribe(w)
	defer func() {
		s.notifier.Unsubscribe(id)
		w.close()
	}()

	<-ctx.Done()
	return nil
}

func (s *AdminService) room(msg *structpb.Struct) (*playback.Room, error) {
	guildID := msg.GetFields()["guild_id"].GetStringValue()
	if guildID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("guild_id is required"))
	}
	room, err := s.rooms.Get(guildID)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return room, nil
}

func roomFields(r *playback.Room) map[string]any {
	fields := map[string]any{
		"guild_id":     r.GuildID(),
		"generation":   r.Generation(),
		"state":        r.State().String(),
		"queue_length": len(r.QueueListing()),
	}
	if conn := r.Conn(); conn != nil {
		fields["voice_channel_id"] = conn.ChannelID()
	}
	if np, ok := r.NowPlaying(); ok {
		current := notification.EntryFields(np.Entry)
		current["skip_votes"] = np.Votes
		current["skip_threshold"] = np.Threshold
		fields["now_playing"] = current
	}
	return fields
}

func response(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// watcher adapts a server stream to notification.Stream. Sends are serialized and
// refused once the handler has returned.
type watcher struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
	closed bool
}

func (w *watcher) Send(n *structpb.Struct) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}
	return w.stream.Send(n)
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}
