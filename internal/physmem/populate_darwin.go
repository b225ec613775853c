package physmem

const mapPopulate = 0
