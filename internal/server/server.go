package server

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// Registrar installs services on a gRPC server before it starts serving.
type Registrar interface {
	Register(server *grpc.Server)
}

// GRPCServer wraps a gRPC server and listener. Reflection is always on so
// the CLI can discover services.
type GRPCServer struct {
	Server   *grpc.Server
	Listener net.Listener
}

func NewGRPCServer(addr string, registrars ...Registrar) (*GRPCServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := grpc.NewServer()
	for _, r := range registrars {
		r.Register(s)
	}
	reflection.Register(s)

	return &GRPCServer{Server: s, Listener: ln}, nil
}

func (s *GRPCServer) Addr() string {
	return s.Listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	return s.Server.Serve(s.Listener)
}

func (s *GRPCServer) Stop() {
	s.Server.GracefulStop()
}
