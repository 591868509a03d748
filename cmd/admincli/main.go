// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/shinonome/internal/api/connect"
)

var (
	app    = kingpin.New("shinonome-admincli", "shinonome admin client")
	server = app.Flag("server", "Admin server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	roomsCmd = app.Command("rooms", "List active rooms").Alias("list")

	queueCmd   = app.Command("queue", "Show the queue of a room")
	queueGuild = queueCmd.Arg("guild-id", "Guild ID").Required().String()

	skipCmd   = app.Command("skip", "Skip the current track of a room")
	skipGuild = skipCmd.Arg("guild-id", "Guild ID").Required().String()

	stopCmd   = app.Command("stop", "Stop a room and leave its voice channel")
	stopGuild = stopCmd.Arg("guild-id", "Guild ID").Required().String()

	watchCmd = app.Command("watch", "Stream playback events until interrupted")
)

type adminClient struct {
	token     string
	listRooms *connect.Client[emptypb.Empty, structpb.Struct]
	getQueue  *connect.Client[structpb.Struct, structpb.Struct]
	skip      *connect.Client[structpb.Struct, structpb.Struct]
	stop      *connect.Client[structpb.Struct, structpb.Struct]
	watch     *connect.Client[emptypb.Empty, structpb.Struct]
}

func newAdminClient(httpClient connect.HTTPClient, baseURL, token string) *adminClient {
	return &adminClient{
		token:     token,
		listRooms: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+apiconnect.ListRoomsProcedure),
		getQueue:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+apiconnect.GetQueueProcedure),
		skip:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+apiconnect.SkipProcedure),
		stop:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+apiconnect.StopProcedure),
		watch:     connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+apiconnect.WatchEventsProcedure),
	}
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := newAdminClient(http.DefaultClient, *server, *token)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case roomsCmd.FullCommand():
		err = client.rooms(ctx)
	case queueCmd.FullCommand():
		err = client.queue(ctx, *queueGuild)
	case skipCmd.FullCommand():
		err = client.action(ctx, client.skip, *skipGuild)
	case stopCmd.FullCommand():
		err = client.action(ctx, client.stop, *stopGuild)
	case watchCmd.FullCommand():
		err = client.watchEvents(ctx)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *adminClient) empty() *connect.Request[emptypb.Empty] {
	req := connect.NewRequest(&emptypb.Empty{})
	req.Header().Set(apiconnect.AdminTokenHeader, c.token)
	return req
}

func (c *adminClient) guild(guildID string) (*connect.Request[structpb.Struct], error) {
	msg, err := structpb.NewStruct(map[string]any{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	req := connect.NewRequest(msg)
	req.Header().Set(apiconnect.AdminTokenHeader, c.token)
	return req, nil
}

func (c *adminClient) rooms(ctx context.Context) error {
	resp, err := c.listRooms.CallUnary(ctx, c.empty())
	if err != nil {
		return err
	}

	rooms := resp.Msg.Fields["rooms"].GetListValue().GetValues()
	fmt.Printf("\n=== ACTIVE ROOMS (%d) ===\n", len(rooms))
	for _, v := range rooms {
		printRoom(v.GetStructValue())
	}
	return nil
}

func (c *adminClient) queue(ctx context.Context, guildID string) error {
	req, err := c.guild(guildID)
	if err != nil {
		return err
	}
	resp, err := c.getQueue.CallUnary(ctx, req)
	if err != nil {
		return err
	}

	printRoom(resp.Msg)
	entries := resp.Msg.Fields["entries"].GetListValue().GetValues()
	if len(entries) == 0 {
		fmt.Println("\nQueue is empty.")
		return nil
	}
	fmt.Println("\nQueue:")
	for i, v := range entries {
		fmt.Printf("  %d. %s\n", i+1, str(v.GetStructValue(), "description"))
	}
	return nil
}

func (c *adminClient) action(ctx context.Context, call *connect.Client[structpb.Struct, structpb.Struct], guildID string) error {
	req, err := c.guild(guildID)
	if err != nil {
		return err
	}
	resp, err := call.CallUnary(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(str(resp.Msg, "message"))
	return nil
}

func (c *adminClient) watchEvents(ctx context.Context) error {
	stream, err := c.watch.CallServerStream(ctx, c.empty())
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Watching playback events (Ctrl+C to stop)...")
	for stream.Receive() {
		msg := stream.Msg()
		line := fmt.Sprintf("[%s] #%d %s guild=%s",
			str(msg, "at"), int(msg.Fields["sequence_no"].GetNumberValue()), str(msg, "type"), str(msg, "guild_id"))
		if entry := msg.Fields["entry"].GetStructValue(); entry != nil {
			line += " " + str(entry, "description")
		}
		fmt.Println(line)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printRoom(room *structpb.Struct) {
	fmt.Printf("\nGuild: %s\n", str(room, "guild_id"))
	fmt.Printf("  Room Generation: %d\n", int(room.Fields["generation"].GetNumberValue()))
	fmt.Printf("  State: %s\n", str(room, "state"))
	if ch := str(room, "voice_channel_id"); ch != "" {
		fmt.Printf("  Voice Channel: %s\n", ch)
	}
	fmt.Printf("  Queue Length: %d\n", int(room.Fields["queue_length"].GetNumberValue()))
	if np := room.Fields["now_playing"].GetStructValue(); np != nil {
		fmt.Printf("  Now Playing: %s [skips: %d/%d]\n", str(np, "description"),
			int(np.Fields["skip_votes"].GetNumberValue()), int(np.Fields["skip_threshold"].GetNumberValue()))
	}
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
