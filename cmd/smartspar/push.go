package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smartspar/internal/httpc"
	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/protocol"
	"github.com/teslashibe/go-smartspar/pkg/recording"
	"github.com/teslashibe/go-smartspar/pkg/session"
	"github.com/teslashibe/go-smartspar/pkg/stats"
)

var (
	pushURL     string
	pushSession string
	pushFast    bool
	pushEnd     bool
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Stream a keypoint recording to a running server",
		Args:  cobra.ExactArgs(1),
		RunE:  runPushCmd,
	}
	cmd.Flags().StringVar(&pushURL, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&pushSession, "session", "", "session ID (default: create a new session)")
	cmd.Flags().BoolVar(&pushFast, "fast", false, "send frames as fast as possible instead of at recorded speed")
	cmd.Flags().BoolVar(&pushEnd, "end", false, "end the session when done and print its report")
	return cmd
}

func runPushCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	base, err := url.Parse(strings.TrimRight(pushURL, "/"))
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}

	r, err := recording.Open(args[0], !pushFast)
	if err != nil {
		return err
	}
	defer r.Close()

	id := pushSession
	if id == "" {
		if id, err = createSession(ctx, base); err != nil {
			return err
		}
	}

	ws := *base
	switch base.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	ws.Path += "/ws/keypoints/" + url.PathEscape(id)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ws.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", ws.String(), err)
	}
	defer conn.Close()
	log.Info("streaming recording", "session", id, "url", ws.String())

	var feedback, counted atomic.Int64
	done := make(chan error, 1)
	go func() {
		done <- readFeedback(conn, out, &feedback, &counted)
	}()

	sent := 0
	for frameID := uint64(1); ; frameID++ {
		frame, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		msg, err := protocol.NewPoseMessage(frame, frameID)
		if err != nil {
			return err
		}
		data, err := msg.Bytes()
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("failed to send frame %d: %w", frameID, err)
		}
		sent++
	}

	// The server answers every frame before it reads the close frame
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case err := <-done:
		if err != nil {
			log.Warn("feedback stream ended", "error", err)
		}
	case <-time.After(3 * time.Second):
		log.Warn("timed out waiting for feedback")
	case <-ctx.Done():
	}

	fmt.Fprintf(out, "session %s: %d frames sent, %d answered, %d punches counted\n",
		id, sent, feedback.Load(), counted.Load())

	if pushEnd {
		var rep session.Report
		if err := httpc.JSON(ctx, http.MethodDelete, base.String()+"/api/sessions/"+url.PathEscape(id), nil, &rep); err != nil {
			return err
		}
		return printJSON(out, rep)
	}

	var st stats.Stats
	if err := httpc.JSON(ctx, http.MethodGet, base.String()+"/api/sessions/"+url.PathEscape(id)+"/stats", nil, &st); err != nil {
		return err
	}
	return printJSON(out, st)
}

func readFeedback(conn *websocket.Conn, out io.Writer, feedback, counted *atomic.Int64) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		switch msg.Type {
		case protocol.TypeFeedback:
			fb, err := msg.GetFeedbackData()
			if err != nil {
				continue
			}
			feedback.Add(1)
			if fb.Counted {
				counted.Add(1)
				fmt.Fprintf(out, "frame %6d  %-8s %s\n", fb.FrameID, fb.Punch, fb.Side)
			}
		case protocol.TypeError:
			if e, err := msg.GetErrorData(); err == nil {
				log.Warn("server rejected message", "error", e.Message)
			}
		}
	}
}

func createSession(ctx context.Context, base *url.URL) (string, error) {
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := httpc.JSON(ctx, http.MethodPost, base.String()+"/api/sessions", nil, &created); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return created.SessionID, nil
}
