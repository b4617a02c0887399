package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/session"
)

// Server manages the RPC listener for the admin service.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Addr returns the address the listener is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes live server state over net/rpc. Methods follow the
// net/rpc signature: exported method, pointer reply, error return.
type AdminService struct {
	sessions *session.Manager
	rooms    *room.Manager
}

func NewAdminService(sessions *session.Manager, rooms *room.Manager) *AdminService {
	return &AdminService{sessions: sessions, rooms: rooms}
}

type StatsArgs struct{}

type StatsReply struct {
	OnlinePlayers int
	ActiveRooms   int
}

func (a *AdminService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.OnlinePlayers = a.sessions.Count()
	reply.ActiveRooms = a.rooms.Count()
	return nil
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []room.Snapshot
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = a.rooms.Snapshots()
	return nil
}

type GetPlayerArgs struct {
	PlayerID string
}

type GetPlayerReply struct {
	Found      bool
	RoomID     string
	CreatedAt  int64
	LastActive int64
}

// GetPlayer looks one connected player up by id. A missing player yields
// Found=false rather than an error, since disconnects race lookups.
func (a *AdminService) GetPlayer(args *GetPlayerArgs, reply *GetPlayerReply) error {
	s, ok := a.sessions.Get(session.PlayerID(args.PlayerID))
	if !ok {
		return nil
	}
	reply.Found = true
	reply.RoomID = s.RoomID()
	reply.CreatedAt = s.CreatedAt.UnixMilli()
	reply.LastActive = s.LastActive().UnixMilli()
	return nil
}
