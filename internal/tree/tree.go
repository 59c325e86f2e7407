// Package tree loads and classifies against a flat, pre-trained
// decision tree: per §3/§4.H, a flat node array where left==right
// marks a leaf, plus a parallel array of (codec, level) labels.
package tree

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/autocomp/autocomp/internal/apperr"
	"github.com/autocomp/autocomp/internal/codec"
)

// Node is one entry of the flat tree array. Left == Right marks a leaf.
type Node struct {
	Left      int
	Right     int
	Feature   int
	Threshold float64
	Value     int
}

func (n Node) isLeaf() bool { return n.Left == n.Right }

// Tree is an immutable, loaded decision tree. Classification is
// reentrant and safe to call from multiple goroutines concurrently.
type Tree struct {
	nFeatures int
	nodes     []Node
	labels    []codec.Codec
}

// NFeatures returns the number of features the tree expects.
func (t *Tree) NFeatures() int { return t.nFeatures }

// ErrFeatureLength is returned by Classify when the supplied feature
// vector's length does not match NFeatures.
type ErrFeatureLength struct {
	Got, Want int
}

func (e *ErrFeatureLength) Error() string {
	return fmt.Sprintf("tree: classify: got %d features, want %d", e.Got, e.Want)
}

// Load reads a tree from an ASCII file at path in the §3 flat format:
// a label count, that many label strings, a feature count, a node
// count, then that many nodes (left right feature threshold value)
// one per line.
func Load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &apperr.IOError{Msg: fmt.Sprintf("open decision tree %s", path), Underlying: err}
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a tree from r in the same format as Load.
func Parse(r io.Reader) (*Tree, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	nextLine := func() (string, error) {
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			return line, nil
		}
		if err := sc.Err(); err != nil {
			return "", &apperr.IOError{Msg: "read decision tree", Underlying: err}
		}
		return "", &apperr.IOError{Msg: "decision tree: unexpected end of input"}
	}
	nextInt := func() (int, error) {
		line, err := nextLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return 0, &apperr.IOError{Msg: fmt.Sprintf("decision tree: expected integer, got %q", line), Underlying: err}
		}
		return n, nil
	}

	nLabels, err := nextInt()
	if err != nil {
		return nil, err
	}
	labels := make([]codec.Codec, nLabels)
	for i := 0; i < nLabels; i++ {
		line, err := nextLine()
		if err != nil {
			return nil, err
		}
		c, err := codec.ParseLabel(line)
		if err != nil {
			return nil, &apperr.IOError{Msg: fmt.Sprintf("decision tree: bad label %q", line), Underlying: err}
		}
		labels[i] = c
	}

	nFeatures, err := nextInt()
	if err != nil {
		return nil, err
	}
	nNodes, err := nextInt()
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, nNodes)
	for i := 0; i < nNodes; i++ {
		line, err := nextLine()
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, &apperr.IOError{Msg: fmt.Sprintf("decision tree: node %d: expected 5 fields, got %d", i, len(fields))}
		}
		left, err1 := strconv.Atoi(fields[0])
		right, err2 := strconv.Atoi(fields[1])
		feature, err3 := strconv.Atoi(fields[2])
		threshold, err4 := strconv.ParseFloat(fields[3], 64)
		value, err5 := strconv.Atoi(fields[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, &apperr.IOError{Msg: fmt.Sprintf("decision tree: node %d: malformed fields %q", i, line)}
		}
		nodes[i] = Node{Left: left, Right: right, Feature: feature, Threshold: threshold, Value: value}
	}

	t := &Tree{nFeatures: nFeatures, nodes: nodes, labels: labels}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) validate() error {
	if len(t.nodes) == 0 {
		return &apperr.IOError{Msg: "decision tree: empty node array"}
	}
	parents := make([]int, len(t.nodes))
	for i, n := range t.nodes {
		if n.isLeaf() {
			if n.Value < 0 || n.Value >= len(t.labels) {
				return &apperr.IOError{Msg: fmt.Sprintf("decision tree: leaf %d: value %d out of range [0,%d)", i, n.Value, len(t.labels))}
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= t.nFeatures {
			return &apperr.IOError{Msg: fmt.Sprintf("decision tree: node %d: feature_index %d >= n_features %d", i, n.Feature, t.nFeatures)}
		}
		if n.Left < 0 || n.Left >= len(t.nodes) || n.Right < 0 || n.Right >= len(t.nodes) {
			return &apperr.IOError{Msg: fmt.Sprintf("decision tree: node %d: child index out of range", i)}
		}
		parents[n.Left]++
		parents[n.Right]++
	}
	// With no parent for the root and at most one for every other node,
	// no walk from the root can revisit a node.
	for i, p := range parents {
		if p > 1 || (i == 0 && p > 0) {
			return &apperr.IOError{Msg: fmt.Sprintf("decision tree: node %d: not a tree rooted at node 0", i)}
		}
	}
	return nil
}

// Classify walks the tree for the given feature point and returns the
// (codec, level) decision at the reached leaf. Halts in at most
// depth(tree) steps since validate rejects any node array in which a
// walk from the root could revisit a node.
func (t *Tree) Classify(point []int) (codec.Codec, error) {
	if len(point) != t.nFeatures {
		return codec.Codec{}, &ErrFeatureLength{Got: len(point), Want: t.nFeatures}
	}
	i := 0
	for !t.nodes[i].isLeaf() {
		n := t.nodes[i]
		if float64(point[n.Feature]) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.labels[t.nodes[i].Value], nil
}
