package action

// FakeBus records output writes for tests.
type FakeBus struct {
	Writes   []FakeWrite
	WriteErr error
}

type FakeWrite struct {
	Device  string
	Channel string
	Value   bool
}

func (f *FakeBus) Write(device, channel string, value bool) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Writes = append(f.Writes, FakeWrite{Device: device, Channel: channel, Value: value})
	return nil
}

// FakeRunner records spawned commands for tests.
type FakeRunner struct {
	Commands []string
	SpawnErr error
}

func (f *FakeRunner) Spawn(command string) error {
	if f.SpawnErr != nil {
		return f.SpawnErr
	}
	f.Commands = append(f.Commands, command)
	return nil
}
