package events

// Commands sent by clients.
const (
	CmdCreateRoom     = "host:create-room"
	CmdStartGame      = "host:start-game"
	CmdRevealStep     = "host:reveal-step"
	CmdSelectPlayer   = "host:select-player"
	CmdValidateAnswer = "host:validate-answer"
	CmdNextImage      = "host:next-image"
	CmdClearBuzzer    = "host:clear-buzzer"
	CmdKickPlayer     = "host:kick-player"
	CmdEndGame        = "host:end-game"
	CmdJoinRoom       = "student:join-room"
	CmdBuzz           = "student:buzz"
	CmdSubmitAnswer   = "student:submit-answer"
	CmdLeave          = "student:leave"
	CmdSync           = "sync:request"
)

// Events sent by the server.
const (
	EvtRoomCreated     = "room:created"
	EvtRoomJoined      = "room:joined"
	EvtPlayerJoined    = "room:player-joined"
	EvtPlayerLeft      = "room:player-left"
	EvtKicked          = "room:kicked"
	EvtRoomClosed      = "room:closed"
	EvtGameStarted     = "game:started"
	EvtRevealUpdated   = "game:reveal-updated"
	EvtPlayerSelected  = "game:player-selected"
	EvtAnswerRequest   = "game:answer-request"
	EvtAnswerResult    = "game:answer-result"
	EvtScoresUpdated   = "game:scores-updated"
	EvtQueueUpdated    = "game:buzzer-queue-updated"
	EvtImageChanged    = "game:image-changed"
	EvtGameEnded       = "game:ended"
	EvtAnswerSubmitted = "game:answer-submitted"
	EvtPenalty         = "student:penalty"
	EvtEliminated      = "student:eliminated"
	EvtSyncState       = "sync:state"
	EvtError           = "error"
)
