// Package polish implements an arbitrary-precision calculator built on
// Polish notations.
//
// Expressions are processed in three stages. Context.Tokenize splits the
// input with a grammar-driven tokenizer. Context.Compile converts the tokens
// to Reverse Polish Notation or Polish Notation with the shunting-yard
// algorithm. Context.Eval evaluates the notation with a value stack.
//
// "-3+1" is a sum of the literal -3 and 1; signs directly in front of digits
// belong to the number. Function arguments are written in brackets, as in
// "log(8, 2)", and "2^3^2" is "2^(3^2)".
//
// Each stage also has a stepped form, CompileSteps and EvalSteps, which
// reports every move of the algorithm for tracing or teaching.
package polish
