package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/matchmaking"
	"github.com/wfunc/matchserver/monitor"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/protocol"
	"github.com/wfunc/matchserver/room"
	matchserver_rpc "github.com/wfunc/matchserver/rpc"
	"github.com/wfunc/matchserver/session"
	"github.com/wfunc/matchserver/timer"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	timers         *timer.Manager
	roomManager    *room.Manager
	sessionManager *session.Manager
	queue          *matchmaking.Queue
	monitor        *monitor.Monitor
	rpcServer      *matchserver_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(addr, rpcAddr, metricsAddr string, matchDuration time.Duration) *GameServer {
	timers := timer.NewManager()
	roomManager := room.NewManager(timers, matchDuration)
	roomManager.SetBroadcaster(broadcast.NewRoomBroadcaster(roomManager))

	s := &GameServer{
		addr:           addr,
		timers:         timers,
		roomManager:    roomManager,
		sessionManager: session.NewManager(),
		queue:          matchmaking.NewQueue(roomManager),
		monitor:        monitor.NewMonitor("matchserver"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // allow all origins
			},
		},
	}

	s.monitor.StartServer(metricsAddr)

	rpcServer, err := matchserver_rpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := matchserver_rpc.NewAdminService(s.sessionManager, s.roomManager)
	rpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Match server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(session.PlayerID(uuid.New().String()), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, player ID: %s", wsConn.RemoteAddr(), sess.ID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, player ID: %s", wsConn.RemoteAddr(), sess.ID)
		s.sessionManager.Remove(sess.ID)
		s.monitor.DecOnlinePlayers()
		s.roomManager.Leave(sess)
		s.monitor.SetActiveRooms(s.roomManager.Count())
		wsConn.Close()
	}()

	// Every connection enters matchmaking immediately.
	s.enterQueue(sess)

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			s.handleMessage(sess, data)
		}
	}
}

func (s *GameServer) enterQueue(sess *session.Session) {
	if s.queue.PairOrWait(sess) {
		s.monitor.IncMatchesStarted()
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())
}

// handleMessage dispatches one inbound frame. Malformed frames, unknown
// types, and messages against a missing room are all dropped silently;
// the client never sees an error.
func (s *GameServer) handleMessage(sess *session.Session, data []byte) {
	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() {
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	msg := protocol.Decode(data)
	if msg == nil {
		return
	}
	sess.Touch(start)

	switch msg.Type {
	case protocol.TypeFound:
		if r, ok := s.roomManager.GetForSession(sess); ok {
			r.HandleFound(sess)
		}
	case protocol.TypeStageReached:
		if r, ok := s.roomManager.GetForSession(sess); ok {
			r.HandleStageReached(sess, msg.Stage)
		}
	case protocol.TypeUseItem:
		if r, ok := s.roomManager.GetForSession(sess); ok {
			r.HandleUseItem(sess, msg.ItemID)
		}
	case protocol.TypeRematch:
		s.handleRematch(sess)
	default:
		logger.Log.Infof("Unknown message type: %s", msg.Type)
	}
}

// handleRematch detaches the player from its current room, if any, and
// feeds it back into matchmaking.
func (s *GameServer) handleRematch(sess *session.Session) {
	s.roomManager.Leave(sess)
	s.enterQueue(sess)
}
