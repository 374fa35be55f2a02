package main

import (
	"context"
	"flag"
	"math"
	"os"
	"strings"
	"time"

	"sketchroom/internal/client"
	"sketchroom/internal/core/domain"
	"sketchroom/internal/infrastructure/discovery"
	"sketchroom/internal/render"
	"sketchroom/pkg/logger"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	discover := flag.Bool("discover", false, "find a server on the LAN over mDNS")
	roomID := flag.String("room", "", "room to join; a new room is created when empty")
	token := flag.String("token", "", "invite token for private rooms")
	name := flag.String("name", "sketchclient", "display name")
	width := flag.Int("width", 1280, "board width")
	height := flag.Int("height", 720, "board height")
	color := flag.String("color", "#1f6feb", "stroke color")
	out := flag.String("out", "board.png", "where to write the converged board")
	wait := flag.Duration("wait", 2*time.Second, "how long to listen before writing the board")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	zapLogger := logger.New(*logLevel, "console")
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	baseURL := *server
	if *discover {
		endpoints, err := discovery.Browse(discovery.DefaultService, 3*time.Second)
		if err != nil || len(endpoints) == 0 {
			log.Fatalw("No server found over mDNS", "error", err)
		}
		baseURL = "http://" + endpoints[0].Address()
		log.Infow("Discovered server", "instance", endpoints[0].Instance, "address", endpoints[0].Address())
	}

	api := client.NewAPIClient(baseURL)
	room := domain.RoomID(*roomID)
	if room == "" {
		created, err := api.CreateRoom(ctx, client.CreateRoomRequest{
			Name:   *name + "'s board",
			Width:  *width,
			Height: *height,
		})
		if err != nil {
			log.Fatalw("Failed to create room", "error", err)
		}
		room = created.Room.ID
		log.Infow("Created room", "room_id", room, "owner_token", created.OwnerToken)
	}

	board := client.NewBoard(*width, *height, log)
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	session, err := client.Dial(ctx, wsURL, board, log)
	if err != nil {
		log.Fatalw("Failed to connect", "error", err)
	}
	defer session.Close()

	if err := session.Join(ctx, room, *name, *token); err != nil {
		log.Fatalw("Failed to join room", "room_id", room, "error", err)
	}

	tool := domain.DefaultTool()
	tool.Color = *color
	tool.Size = 6
	if err := session.DrawStroke(tool, wave(*width, *height)); err != nil {
		log.Fatalw("Failed to draw", "error", err)
	}

	select {
	case <-time.After(*wait):
	case <-session.Done():
		log.Warnw("Connection closed early", "error", session.Err())
	}

	surface, err := board.Composite()
	if err != nil {
		log.Fatalw("Failed to composite board", "error", err)
	}
	data, err := surface.EncodePNG()
	if err != nil {
		log.Fatalw("Failed to encode board", "error", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalw("Failed to write board", "path", *out, "error", err)
	}

	if remote, err := api.BoardPNG(ctx, room); err != nil {
		log.Warnw("Could not fetch server rendering", "error", err)
	} else if s, err := render.DecodePNG(remote); err == nil {
		log.Infow("Compared with server rendering", "identical", s.Equal(surface))
	}

	log.Infow("Board written",
		"path", *out,
		"room_id", room,
		"participants", len(board.Roster())+1,
	)
}

// wave returns a sine stroke across the middle of the board.
func wave(width, height int) []domain.Point {
	const steps = 48
	margin := float64(width) * 0.1
	span := float64(width) - 2*margin
	mid := float64(height) / 2
	amp := float64(height) / 5

	pts := make([]domain.Point, 0, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		pts = append(pts, domain.NewPoint(margin+t*span, mid+amp*math.Sin(t*4*math.Pi)))
	}
	return pts
}
