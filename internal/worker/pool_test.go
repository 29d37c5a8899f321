package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestExecutePreservesOrder(t *testing.T) {
	pool := NewPool[int, string](4, func(ctx context.Context, n int) (string, error) {
		return fmt.Sprintf("item-%d", n), nil
	})

	inputs := []int{5, 3, 9, 1, 7}
	results := pool.Execute(context.Background(), inputs)

	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}
	for i, task := range results {
		if task.Input != inputs[i] {
			t.Errorf("result %d: input %d out of order", i, task.Input)
		}
		if want := fmt.Sprintf("item-%d", inputs[i]); task.Result != want {
			t.Errorf("result %d: got %q, want %q", i, task.Result, want)
		}
	}
}

func TestExecuteKeepsErrorsPerTask(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool[int, int](2, func(ctx context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, boom
		}
		return n * 10, nil
	})

	results := pool.Execute(context.Background(), []int{0, 1, 2, 3})

	for _, task := range results {
		if task.Input%2 == 1 {
			if !errors.Is(task.Err, boom) {
				t.Errorf("input %d: expected error, got %v", task.Input, task.Err)
			}
		} else if task.Err != nil || task.Result != task.Input*10 {
			t.Errorf("input %d: unexpected result %d err %v", task.Input, task.Result, task.Err)
		}
	}
}

func TestNewPoolClampsWorkerCount(t *testing.T) {
	pool := NewPool[int, int](0, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})
	results := pool.Execute(context.Background(), []int{1, 2, 3})
	if len(results) != 3 {
		t.Fatalf("pool with clamped workers must still process everything, got %d", len(results))
	}
}

func TestChunk(t *testing.T) {
	cases := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{"even split", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder", []int{1, 2, 3, 4, 5}, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"oversized", []int{1, 2}, 10, [][]int{{1, 2}}},
		{"zero size clamps to one", []int{1, 2}, 0, [][]int{{1}, {2}}},
		{"empty", nil, 3, nil},
	}

	for _, tc := range cases {
		got := Chunk(tc.items, tc.size)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %d chunks, want %d", tc.name, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if len(got[i]) != len(tc.want[i]) {
				t.Errorf("%s: chunk %d has %d items, want %d", tc.name, i, len(got[i]), len(tc.want[i]))
				continue
			}
			for j := range got[i] {
				if got[i][j] != tc.want[i][j] {
					t.Errorf("%s: chunk %d item %d = %d, want %d", tc.name, i, j, got[i][j], tc.want[i][j])
				}
			}
		}
	}
}
