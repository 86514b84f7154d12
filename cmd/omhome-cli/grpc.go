package main

import (
	"context"
	"fmt"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func dial(ctx context.Context) (*grpc.ClientConn, error) {
	addr := resolveGRPC()
	conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func reflectionSource(ctx context.Context, conn *grpc.ClientConn) grpcurl.DescriptorSource {
	client := grpcreflect.NewClientAuto(ctx, conn)
	return grpcurl.DescriptorSourceFromServer(ctx, client)
}

func newServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List gRPC services exposed by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := dial(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			services, err := grpcurl.ListServices(reflectionSource(ctx, conn))
			if err != nil {
				return fmt.Errorf("list services: %w", err)
			}
			for _, service := range services {
				fmt.Fprintln(cmd.OutOrStdout(), service)
			}
			return nil
		},
	}
}

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods <service>",
		Short: "List the methods of a gRPC service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := dial(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			methods, err := grpcurl.ListMethods(reflectionSource(ctx, conn), args[0])
			if err != nil {
				return fmt.Errorf("list methods: %w", err)
			}
			for _, method := range methods {
				fmt.Fprintln(cmd.OutOrStdout(), method)
			}
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health [service]",
		Short: "Check the daemon's gRPC health service (empty service is overall health)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := dial(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			service := ""
			if len(args) == 1 {
				service = args[0]
			}
			resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", orDash(service), resp.GetStatus())
			}
			return nil
		},
	}
}

func addGRPCCommands(root *cobra.Command) {
	root.AddCommand(newServicesCmd(), newMethodsCmd(), newHealthCmd())
}
