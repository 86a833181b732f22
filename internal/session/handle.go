package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/intervue/internal/ipc"
)

// Handle serves IPC commands for a locally owned session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.respond("status", nil)
	case "say":
		text := strings.TrimSpace(req.Text)
		if text == "" {
			return c.respond("", errors.New("say requires text"))
		}
		if !c.UpdateTranscript("", text) {
			return c.respond("", invalidState("capture is disabled"))
		}
		return c.respond("transcript updated", nil)
	case "code":
		c.UpdateCode(CodeSubmission{Language: req.Language, Source: req.Code})
		return c.respond("code updated", nil)
	case "submit":
		var code *CodeSubmission
		if req.Code != "" {
			code = &CodeSubmission{Language: req.Language, Source: req.Code}
		}
		res, err := c.Submit(ctx, code)
		if err != nil {
			return c.respond("", err)
		}
		if res.Completed {
			return c.respond("question complete", nil)
		}
		return c.respond(res.Text, nil)
	case "ask":
		return c.respond("listening for question", c.AskQuestion(ctx))
	case "next":
		return c.respond("advanced", c.AdvanceToNextQuestion(ctx))
	case "mode":
		if c.ToggleCodeMode() {
			return c.respond("code mode on", nil)
		}
		return c.respond("code mode off", nil)
	case "replay":
		return c.respond("prompt replayed", c.ReplayPrompt(ctx))
	case "stop":
		return c.respond("stopped", c.Close(ctx))
	default:
		return c.respond("", fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (c *Controller) respond(message string, err error) ipc.Response {
	snap := c.Snapshot()
	resp := ipc.Response{
		OK:            err == nil,
		State:         string(snap.State),
		QuestionIndex: snap.QuestionIndex,
		Budget:        snap.Budget,
	}
	if snap.Finished {
		resp.State = "finished"
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Message = message
	return resp
}
