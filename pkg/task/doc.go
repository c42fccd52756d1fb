// Package task runs conversations against an llm.Client.
//
// A Task keeps the history of a conversation. AskParsed asks until the answer
// parses, which makes it easy to drive with a scripted sequence of good and bad
// answers:
//
//	m := fake.NewModel().ResponseSequence(fake.Text("oops"), fake.Text(`{"n": 4}`))
//	t := task.New(fake.NewClient(m, ""), llm.NewHistory())
//	v, err := task.AskParsed(ctx, t, "2+2?", task.JSONParser[result](nil), 3)
package task
