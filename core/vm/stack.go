package vm

import "github.com/holiman/uint256"

// Stack is the 256-bit-word operand stack, backed by holiman/uint256.
type Stack struct {
	data []uint256.Int
}

const maxStackDepth = 1024

func newStack() *Stack { return &Stack{data: make([]uint256.Int, 0, 16)} }

func (s *Stack) push(v *uint256.Int) { s.data = append(s.data, *v) }

func (s *Stack) pop() uint256.Int {
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v
}

func (s *Stack) peek() *uint256.Int { return &s.data[len(s.data)-1] }

func (s *Stack) back(n int) *uint256.Int { return &s.data[len(s.data)-n-1] }

func (s *Stack) len() int { return len(s.data) }

func (s *Stack) swap(n int) {
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

func (s *Stack) dup(n int) {
	v := s.data[len(s.data)-n]
	s.data = append(s.data, v)
}
