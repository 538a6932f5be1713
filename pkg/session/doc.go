/*
Package session keeps multi-turn conversations for stateless front ends.

A Manager serializes the turns of one session so concurrent requests for the
same session see each other's history, locally through reference-counted
mutexes and across replicas through an optional ports.DistributedLocker.
History lives in a ports.ConversationStore.
*/
package session
