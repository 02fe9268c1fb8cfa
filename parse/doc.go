// Package parse classifies the top-level declarations of a preprocessed
// C translation unit into records. It does not parse function bodies or
// expressions, bodies are skipped by brace depth and initializers are
// kept as text.
//
// A declaration is split into specifiers and a list of declarators:
//
//	static const char *names[4], *last;
//	^^^^^^^^^^^^^^^^^ ^^^^^^^^^  ^^^^^
//	specifiers        declarator declarator
//
// The declarator introduces the name. Read from the name outward it
// gives the derivation chain of the type:
//
//	int *(*p)[10];  pointer, array of 10, pointer
//
// Record types are rendered as abstract declarators, the declarator
// with the name left out:
//
//	int (*)(int, int)
//
// A statement that cannot be classified is skipped with a warning and
// classification resumes at the next statement.
package parse
