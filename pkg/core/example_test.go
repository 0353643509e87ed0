package core_test

import (
	"context"
	"fmt"

	"github.com/secai/secai/pkg/core"
)

// ExampleNewOfflineSession walks one verdict through an offline investigation.
func ExampleNewOfflineSession() {
	ctx := context.Background()
	s := core.NewOfflineSession(core.WithExpandCount(2))

	root, err := s.Start(ctx, "Attackers exfiltrated customer records")
	if err != nil {
		fmt.Println("start failed:", err)
		return
	}

	res, err := s.Mark(ctx, root.Children[0].ID, core.MarkPlausible)
	if err != nil {
		fmt.Println("mark failed:", err)
		return
	}
	fmt.Println(res.Node.Status, res.Added)

	_, err = s.Mark(ctx, root.ID, core.MarkImplausible)
	fmt.Println(err != nil)
	// Output:
	// plausible 2
	// true
}
