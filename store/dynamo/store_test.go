//go:build integration

package dynamo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adiazcan/timesheet-speck-kit-sub001/store"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/dynamo"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/storetest"
)

// setupEndpoint starts DynamoDB Local and returns its URL.
func setupEndpoint(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.5.2",
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory"},
			ExposedPorts: []string{"8000/tcp"},
			WaitingFor: wait.ForListeningPort("8000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start dynamodb container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "http")
	if err != nil {
		t.Fatalf("get endpoint: %v", err)
	}
	return endpoint
}

func TestDynamoStore(t *testing.T) {
	endpoint := setupEndpoint(t)
	ctx := context.Background()

	cfg := aws.Config{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	}
	n := 0

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		n++
		s := dynamo.NewFromConfig(cfg, endpoint, dynamo.WithTables(
			fmt.Sprintf("items_%d", n),
			fmt.Sprintf("requests_%d", n),
		))
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return s
	})
}
