package ast

import "iter"

// Visitor defines the interface for AST traversal. If Visit returns nil,
// children of the node are not visited. Otherwise, the returned Visitor
// is used to visit children.
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses an AST in depth-first order. It starts by calling
// v.Visit(node); if the returned visitor w is not nil, Walk is invoked
// recursively with visitor w for each of the non-nil children of node.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	for _, child := range Children(node) {
		Walk(v, child)
	}
}

// Children returns the non-nil direct children of node in source order.
func Children(node Node) []Node {
	var out []Node
	add := func(n Node) {
		switch n := n.(type) {
		case nil:
		case *Program:
			if n != nil {
				out = append(out, n)
			}
		case *Hash:
			if n != nil {
				out = append(out, n)
			}
		default:
			out = append(out, n)
		}
	}
	call := func(path Expr, params []Expr, hash *Hash) {
		add(path)
		for _, p := range params {
			add(p)
		}
		add(hash)
	}
	switch n := node.(type) {
	case *Program:
		for _, stmt := range n.Body {
			add(stmt)
		}
	case *MustacheStatement:
		call(n.Path, n.Params, n.Hash)
	case *Decorator:
		call(n.Path, n.Params, n.Hash)
	case *BlockStatement:
		call(n.Path, n.Params, n.Hash)
		add(n.Program)
		add(n.Inverse)
	case *DecoratorBlock:
		call(n.Path, n.Params, n.Hash)
		add(n.Program)
	case *PartialStatement:
		call(n.Name, n.Params, n.Hash)
	case *PartialBlockStatement:
		call(n.Name, n.Params, n.Hash)
		add(n.Program)
	case *SubExpression:
		call(n.Path, n.Params, n.Hash)
	case *Hash:
		for _, pair := range n.Pairs {
			add(pair)
		}
	case *HashPair:
		add(n.Value)
	}
	return out
}

// Inspect traverses an AST in depth-first order. It calls f(node) for each
// node; if f returns true, Inspect invokes f recursively for each of the
// non-nil children of node.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Preorder returns an iterator over all the nodes of the AST rooted at node
// in depth-first preorder.
func Preorder(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		var visit func(Node) bool
		visit = func(n Node) bool {
			if !yield(n) {
				return false
			}
			for _, child := range Children(n) {
				if !visit(child) {
					return false
				}
			}
			return true
		}
		visit(root)
	}
}
