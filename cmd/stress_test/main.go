package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/technirvor/storefront/internal/adapter/handler"
	"github.com/technirvor/storefront/internal/core/service"
)

var (
	addr          string
	apiKey        string
	productID     string
	district      string
	price         string
	deliveryFee   string
	totalRequests int
	expectedStock int
)

var rootCmd = &cobra.Command{
	Use:          "stress_test",
	Short:        "Fire concurrent single-unit orders at one product over gRPC",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&addr, "addr", "localhost:50051", "gRPC address")
	f.StringVar(&apiKey, "api-key", os.Getenv("TN_API_KEY"), "x-api-key value")
	f.StringVar(&productID, "product", "", "product id to order")
	f.StringVar(&district, "district", "Dhaka", "delivery district")
	f.StringVar(&price, "price", "0", "unit price the product sells at")
	f.StringVar(&deliveryFee, "delivery-charge", "60", "district delivery charge")
	f.IntVar(&totalRequests, "requests", 50, "concurrent orders to place")
	f.IntVar(&expectedStock, "stock", 20, "product stock before the run")
	_ = rootCmd.MarkFlagRequired("product")
}

func run(ctx context.Context) error {
	unit, err := decimal.NewFromString(price)
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	fee, err := decimal.NewFromString(deliveryFee)
	if err != nil {
		return fmt.Errorf("invalid delivery charge: %w", err)
	}
	total := unit.Add(fee)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()
	client := handler.NewOrderClient(conn, apiKey)

	var successCount, soldOutCount, otherCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := &handler.PlaceOrderRPCRequest{
				IdempotencyKey: fmt.Sprintf("stress-%d-%d", start.UnixNano(), n),
				Order: service.PlaceOrderRequest{
					CustomerName:  fmt.Sprintf("Stress Customer %d", n),
					CustomerPhone: fmt.Sprintf("0171%07d", n),
					District:      district,
					Address:       "Load test",
					Items:         []service.PlaceOrderItem{{ProductID: productID, Quantity: 1, Price: &unit}},
					TotalAmount:   &total,
				},
			}
			// Each request poses as its own shopper so the intake rate limit
			// does not cap the run.
			callCtx := metadata.AppendToOutgoingContext(ctx, "x-forwarded-for", fmt.Sprintf("10.77.%d.%d", n/256, n%256))
			_, err := client.PlaceOrder(callCtx, req)
			switch {
			case err == nil:
				successCount.Add(1)
			case status.Code(err) == codes.InvalidArgument:
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				fmt.Fprintf(os.Stderr, "order %d: %v\n", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", expectedStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOutCount.Load())
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	want := min(expectedStock, totalRequests)
	if success != want {
		return fmt.Errorf("FAIL: expected %d successful orders, got %d", want, success)
	}
	fmt.Printf("PASS: exactly %d orders succeeded\n", want)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
