package server

import (
	"fmt"

	"picturebuzz/internal/events"
	"picturebuzz/internal/game"
	"picturebuzz/internal/players"
	"picturebuzz/internal/rooms"
)

type commandFunc func(g *Gateway, in Inbound) error

var commands = map[string]commandFunc{
	events.CmdCreateRoom:     (*Gateway).createRoom,
	events.CmdStartGame:      (*Gateway).startGame,
	events.CmdRevealStep:     (*Gateway).revealStep,
	events.CmdSelectPlayer:   (*Gateway).selectPlayer,
	events.CmdValidateAnswer: (*Gateway).validateAnswer,
	events.CmdNextImage:      (*Gateway).nextImage,
	events.CmdClearBuzzer:    (*Gateway).clearBuzzer,
	events.CmdKickPlayer:     (*Gateway).kickPlayer,
	events.CmdEndGame:        (*Gateway).endGame,
	events.CmdJoinRoom:       (*Gateway).joinRoom,
	events.CmdBuzz:           (*Gateway).buzz,
	events.CmdSubmitAnswer:   (*Gateway).submitAnswer,
	events.CmdLeave:          (*Gateway).leave,
	events.CmdSync:           (*Gateway).syncRequest,
}

func decode[T any](in Inbound) (T, error) {
	var v T
	if err := in.Envelope.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %v", events.ErrBadPayload, err)
	}
	return v, nil
}

// Host commands.

func (g *Gateway) createRoom(in Inbound) error {
	req, err := decode[events.CreateRoomRequest](in)
	if err != nil {
		return err
	}
	room, err := g.engine.CreateRoom(in.Conn, req.Category, req.Mode)
	if err != nil {
		return err
	}
	g.out.Join(room.Code, in.Conn)
	g.reply(in, events.EvtRoomCreated, events.RoomCreated{RoomCode: room.Code, HostID: string(in.Conn)})

	if g.metrics != nil {
		g.metrics.RoomsCreated.Inc()
	}
	g.log.Info().Str("room", room.Code).Str("category", room.Category).Msg("room created")
	return nil
}

func (g *Gateway) startGame(in Inbound) error {
	req, err := decode[events.StartGameRequest](in)
	if err != nil {
		return err
	}
	started, err := g.engine.StartGame(req.RoomCode, in.Conn, req.TotalImages)
	if err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)
	g.broadcast(code, events.EvtGameStarted, events.GameStarted{
		TotalImages: started.TotalImages,
		Players:     started.Players,
	})
	g.log.Info().Str("room", code).Int("images", started.TotalImages).Int("players", len(started.Players)).Msg("game started")
	return nil
}

func (g *Gateway) revealStep(in Inbound) error {
	req, err := decode[events.RevealStepRequest](in)
	if err != nil {
		return err
	}
	step, err := g.engine.UpdateRevealStep(req.RoomCode, in.Conn, req.Step)
	if err != nil {
		return err
	}
	g.broadcast(rooms.NormalizeCode(req.RoomCode), events.EvtRevealUpdated, events.RevealUpdated{RevealStep: step})
	return nil
}

func (g *Gateway) selectPlayer(in Inbound) error {
	req, err := decode[events.PlayerRequest](in)
	if err != nil {
		return err
	}
	sel, err := g.engine.SelectPlayer(req.RoomCode, in.Conn, req.PlayerID)
	if err != nil {
		return err
	}
	g.broadcast(rooms.NormalizeCode(req.RoomCode), events.EvtPlayerSelected, sel)
	g.send(g.engine.Registry().ConnOf(sel.ID), events.EvtAnswerRequest, events.AnswerRequest{PlayerID: sel.ID})
	return nil
}

func (g *Gateway) validateAnswer(in Inbound) error {
	req, err := decode[events.ValidateAnswerRequest](in)
	if err != nil {
		return err
	}
	out, err := g.engine.ProcessAnswer(req.RoomCode, in.Conn, req.PlayerID, req.IsCorrect)
	if err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)

	result := events.AnswerResult{
		PlayerID:  out.PlayerID,
		IsCorrect: out.Correct,
		Points:    out.Points,
		Deducted:  out.Deducted,
		Score:     out.Score,
	}
	if out.Correct {
		result.CorrectAnswerText = req.CorrectAnswerText
	}
	g.broadcast(code, events.EvtAnswerResult, result)
	if !out.Correct {
		g.send(g.engine.Registry().ConnOf(out.PlayerID), events.EvtEliminated, events.Eliminated{PlayerID: out.PlayerID})
	}
	g.broadcast(code, events.EvtQueueUpdated, events.QueueUpdated{Queue: out.Queue, Locked: out.Locked})
	g.broadcast(code, events.EvtScoresUpdated, events.PlayerList{Players: out.Players})
	return nil
}

func (g *Gateway) nextImage(in Inbound) error {
	req, err := decode[events.RoomRequest](in)
	if err != nil {
		return err
	}
	adv, err := g.engine.NextImage(req.RoomCode, in.Conn)
	if err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)

	if adv.GameOver {
		g.broadcast(code, events.EvtGameEnded, events.GameEnded{FinalScores: adv.FinalScores})
		g.archiveGame(code, adv.FinalScores)
		g.log.Info().Str("room", code).Msg("game over")
		return nil
	}

	g.broadcast(code, events.EvtImageChanged, events.ImageChanged{ImageIndex: adv.ImageIndex, TotalImages: adv.TotalImages})
	g.broadcast(code, events.EvtQueueUpdated, events.QueueUpdated{Queue: []players.ID{}, Locked: false})
	penalty := events.Penalty{Duration: adv.PenaltyDuration.Milliseconds()}
	for _, id := range adv.Penalized {
		g.send(g.engine.Registry().ConnOf(id), events.EvtPenalty, penalty)
	}
	return nil
}

func (g *Gateway) clearBuzzer(in Inbound) error {
	req, err := decode[events.RoomRequest](in)
	if err != nil {
		return err
	}
	if err := g.engine.ClearBuzzer(req.RoomCode, in.Conn); err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)
	g.broadcast(code, events.EvtQueueUpdated, events.QueueUpdated{Queue: []players.ID{}, Locked: false})
	g.broadcast(code, events.EvtPlayerSelected, nil)
	return nil
}

func (g *Gateway) kickPlayer(in Inbound) error {
	req, err := decode[events.PlayerRequest](in)
	if err != nil {
		return err
	}
	// resolve before the membership is dropped
	conn := g.engine.Registry().ConnOf(req.PlayerID)
	dep, err := g.engine.KickPlayer(req.RoomCode, in.Conn, req.PlayerID)
	if err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)
	g.send(conn, events.EvtKicked, events.RoomClosed{RoomCode: code, Reason: "kicked"})
	g.out.Leave(code, conn)
	g.announceDeparture(code, dep)
	g.log.Info().Str("room", code).Str("player", string(dep.PlayerID)).Msg("player kicked")
	return nil
}

func (g *Gateway) endGame(in Inbound) error {
	req, err := decode[events.RoomRequest](in)
	if err != nil {
		return err
	}
	end, err := g.engine.EndGame(req.RoomCode, in.Conn)
	if err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)
	g.broadcast(code, events.EvtGameEnded, events.GameEnded{FinalScores: end.FinalScores})
	if !end.JustEnded {
		return nil
	}
	g.archiveGame(code, end.FinalScores)
	g.log.Info().Str("room", code).Msg("game ended by host")
	return nil
}

// Student commands.

func (g *Gateway) joinRoom(in Inbound) error {
	req, err := decode[events.JoinRoomRequest](in)
	if err != nil {
		return err
	}
	joined, err := g.engine.JoinRoom(req.RoomCode, in.Conn, req.PlayerName)
	if err != nil {
		return err
	}
	g.out.Join(joined.Code, in.Conn)
	g.reply(in, events.EvtRoomJoined, events.RoomJoined{
		RoomCode:   joined.Code,
		PlayerID:   joined.Player.ID,
		PlayerName: joined.Player.Name,
	})
	g.broadcast(joined.Code, events.EvtPlayerJoined, events.PlayerList{Players: joined.Players})
	g.log.Info().Str("room", joined.Code).Str("player", joined.Player.Name).Msg("player joined")
	return nil
}

func (g *Gateway) buzz(in Inbound) error {
	req, err := decode[events.RoomRequest](in)
	if err != nil {
		return err
	}
	res, err := g.engine.Buzz(req.RoomCode, in.Conn)
	if g.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = events.Reason(err)
		}
		g.metrics.Buzzes.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return err
	}
	g.broadcast(rooms.NormalizeCode(req.RoomCode), events.EvtQueueUpdated, events.QueueUpdated{Queue: res.Queue, Locked: res.Locked})
	return nil
}

func (g *Gateway) submitAnswer(in Inbound) error {
	req, err := decode[events.SubmitAnswerRequest](in)
	if err != nil {
		return err
	}
	sub, err := g.engine.SubmitAnswer(req.RoomCode, in.Conn, req.Answer)
	if err != nil {
		return err
	}
	g.send(sub.HostConn, events.EvtAnswerSubmitted, events.AnswerSubmitted{
		PlayerID:   sub.PlayerID,
		PlayerName: sub.PlayerName,
		Answer:     sub.Answer,
	})
	return nil
}

func (g *Gateway) leave(in Inbound) error {
	req, err := decode[events.RoomRequest](in)
	if err != nil {
		return err
	}
	dep, err := g.engine.LeaveRoom(req.RoomCode, in.Conn)
	if err != nil {
		return err
	}
	code := rooms.NormalizeCode(req.RoomCode)
	g.out.Leave(code, in.Conn)
	g.announceDeparture(code, dep)
	g.log.Info().Str("room", code).Str("player", string(dep.PlayerID)).Msg("player left")
	return nil
}

// Shared.

func (g *Gateway) syncRequest(in Inbound) error {
	req, err := decode[events.RoomRequest](in)
	if err != nil {
		return err
	}
	snap, err := g.engine.Snapshot(req.RoomCode)
	if err != nil {
		return err
	}
	g.reply(in, events.EvtSyncState, snap)
	return nil
}

func (g *Gateway) announceDeparture(code string, dep game.Departure) {
	g.broadcast(code, events.EvtPlayerLeft, events.PlayerLeft{PlayerID: dep.PlayerID, Players: dep.Players})
	g.broadcast(code, events.EvtQueueUpdated, events.QueueUpdated{Queue: dep.Queue, Locked: dep.Locked})
	if dep.WasSelected {
		g.broadcast(code, events.EvtPlayerSelected, nil)
	}
}
