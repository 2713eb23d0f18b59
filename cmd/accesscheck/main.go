// Command accesscheck calls the identity service's gRPC access API, for checking a
// deployment by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arklim/portal-identity/internal/transport/grpc/portalv1"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "identity service gRPC address")
	token := flag.String("token", os.Getenv("PORTAL_ACCESS_TOKEN"), "access token to verify")
	resource := flag.String("resource", "", "resource to check, skipped when empty")
	timeout := flag.Duration("timeout", 10*time.Second, "call timeout")
	flag.Parse()

	if *token == "" {
		log.Fatal("an access token is required (-token or PORTAL_ACCESS_TOKEN)")
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	client := portalv1.NewAccessServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	validation, err := client.ValidateToken(ctx, wrapperspb.String(*token))
	if err != nil {
		log.Fatalf("ValidateToken failed: %v", err)
	}
	fmt.Println("ValidateToken:")
	fmt.Println(protojson.Format(validation))

	if *resource == "" {
		return
	}

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+*token)
	check, err := client.CheckAccess(ctx, wrapperspb.String(*resource))
	if err != nil {
		log.Fatalf("CheckAccess failed: %v", err)
	}
	fmt.Println("CheckAccess:")
	fmt.Println(protojson.Format(check))
}
